// Package auth provides access-token sources for the hub connection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Errors
var (
	ErrNoToken = errors.New("access token is empty")
)

// Provider returns the bearer token to present on connect. It is assignable
// to connection.TokenProvider.
type Provider = func(ctx context.Context) (string, error)

// Static always returns token.
func Static(token string) Provider {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// FromEnv reads the named environment variable on every call.
func FromEnv(name string) Provider {
	return func(context.Context) (string, error) {
		token := strings.TrimSpace(os.Getenv(name))
		if token == "" {
			return "", fmt.Errorf("%w: $%s", ErrNoToken, name)
		}
		return token, nil
	}
}

// FromFile reads the token from path on every call, so a sidecar can rotate
// it between reconnects.
func FromFile(path string) Provider {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}

		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("%w: %s", ErrNoToken, path)
		}
		return token, nil
	}
}

// Chain tries each provider in order and returns the first token found.
func Chain(providers ...Provider) Provider {
	return func(ctx context.Context) (string, error) {
		var errs []error
		for _, p := range providers {
			if p == nil {
				continue
			}
			token, err := p(ctx)
			if err == nil && token != "" {
				return token, nil
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) == 0 {
			return "", ErrNoToken
		}
		return "", errors.Join(errs...)
	}
}
