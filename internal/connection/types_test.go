package connection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{HubURL: "wss://x"}, false},
		{"missing url", Config{}, true},
		{"negative timeout", Config{HubURL: "wss://x", ConnectTimeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("Validate() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{HubURL: "wss://x"}.withDefaults()

	if cfg.Transport != TransportWebSockets {
		t.Errorf("Transport = %q, want %q", cfg.Transport, TransportWebSockets)
	}
	if cfg.KeepAliveInterval != 30*time.Second {
		t.Errorf("KeepAliveInterval = %v, want 30s", cfg.KeepAliveInterval)
	}
	if cfg.ServerTimeout != 60*time.Second {
		t.Errorf("ServerTimeout = %v, want 60s", cfg.ServerTimeout)
	}
	if cfg.ConnectTimeout != 15*time.Second {
		t.Errorf("ConnectTimeout = %v, want 15s", cfg.ConnectTimeout)
	}
	if cfg.Groups != nil {
		t.Errorf("Groups = %v, want nil", cfg.Groups)
	}
}

func TestConfig_SameSession(t *testing.T) {
	base := Config{HubURL: "wss://x", Groups: []string{"a"}}.withDefaults()

	withProvider := base
	withProvider.TokenProvider = func(context.Context) (string, error) { return "t", nil }
	if !base.sameSession(withProvider) {
		t.Error("token provider should not affect session identity")
	}

	noGroups := base
	noGroups.Groups = nil
	if !base.sameSession(noGroups) {
		t.Error("nil groups should match any group set")
	}

	otherGroups := base
	otherGroups.Groups = []string{"b"}
	if base.sameSession(otherGroups) {
		t.Error("different groups should start a new session")
	}

	otherToken := base
	otherToken.AccessToken = "rotated"
	if base.sameSession(otherToken) {
		t.Error("different access token should start a new session")
	}
}

func TestConfig_TokenProvider(t *testing.T) {
	if p := (Config{}).tokenProvider(); p != nil {
		t.Error("expected nil provider without a token")
	}

	p := Config{AccessToken: "abc"}.tokenProvider()
	token, err := p(context.Background())
	if err != nil || token != "abc" {
		t.Errorf("provider() = %q, %v; want %q, nil", token, err, "abc")
	}

	custom := Config{
		AccessToken:   "ignored",
		TokenProvider: func(context.Context) (string, error) { return "fresh", nil },
	}.tokenProvider()
	token, _ = custom(context.Background())
	if token != "fresh" {
		t.Errorf("provider() = %q, want %q", token, "fresh")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateReconnecting: "reconnecting",
		State(9):          "state(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}

func TestGroupSet(t *testing.T) {
	g := newGroupSet([]string{"b", "", "a", "b"})

	if got := g.names(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("names() = %v, want [a b]", got)
	}
	if g.add("a") {
		t.Error("add existing returned true")
	}
	if !g.add("c") {
		t.Error("add new returned false")
	}
	if !g.remove("a") {
		t.Error("remove existing returned false")
	}
	if g.remove("zzz") {
		t.Error("remove missing returned true")
	}
}
