package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind enumerates the events a connection manager can emit.
type Kind int

const (
	KindConnected Kind = iota + 1
	KindDisconnected
	KindConnectionError
	KindConnectionTimeout
	KindGroupJoined
	KindGroupJoinError
	KindReconnectExhausted
	KindReconnecting
	KindHubMessage
)

var kindNames = map[Kind]string{
	KindConnected:          "connected",
	KindDisconnected:       "disconnected",
	KindConnectionError:    "connection_error",
	KindConnectionTimeout:  "connection_timeout",
	KindGroupJoined:        "group_joined",
	KindGroupJoinError:     "group_join_error",
	KindReconnectExhausted: "reconnect_exhausted",
	KindReconnecting:       "reconnecting",
	KindHubMessage:         "hub_message",
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindConnected; k <= KindHubMessage; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind resolves a wire name such as "group_joined".
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown event %q", ErrInvalidArgument, name)
}

// Event is a tagged variant: Kind selects which payload fields are set.
//
//	connected, connection_timeout, reconnect_exhausted: no payload
//	disconnected:       Err (may be nil)
//	connection_error:   Err
//	group_joined:       Group
//	group_join_error:   Group, Err
//	reconnecting:       Attempt, Delay
//	hub_message:        Target, Args
type Event struct {
	Kind    Kind
	At      time.Time
	Err     error
	Group   string
	Attempt int
	Delay   time.Duration
	Target  string
	Args    []json.RawMessage
}

func Connected() Event { return Event{Kind: KindConnected} }

func Disconnected(err error) Event { return Event{Kind: KindDisconnected, Err: err} }

func ConnectionError(err error) Event { return Event{Kind: KindConnectionError, Err: err} }

func ConnectionTimeout() Event { return Event{Kind: KindConnectionTimeout} }

func GroupJoined(group string) Event { return Event{Kind: KindGroupJoined, Group: group} }

func GroupJoinError(group string, err error) Event {
	return Event{Kind: KindGroupJoinError, Group: group, Err: err}
}

func ReconnectExhausted() Event { return Event{Kind: KindReconnectExhausted} }

func Reconnecting(attempt int, delay time.Duration) Event {
	return Event{Kind: KindReconnecting, Attempt: attempt, Delay: delay}
}

// HubMessage wraps an inbound server-to-client invocation.
func HubMessage(target string, args []json.RawMessage) Event {
	return Event{Kind: KindHubMessage, Target: target, Args: args}
}

// String renders the event for logs and the CLI.
func (e Event) String() string {
	switch e.Kind {
	case KindDisconnected, KindConnectionError:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
	case KindGroupJoined:
		return fmt.Sprintf("%s: %s", e.Kind, e.Group)
	case KindGroupJoinError:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Group, e.Err)
	case KindReconnecting:
		return fmt.Sprintf("%s: attempt %d in %s", e.Kind, e.Attempt, e.Delay)
	case KindHubMessage:
		return fmt.Sprintf("%s: %s (%d args)", e.Kind, e.Target, len(e.Args))
	}
	return e.Kind.String()
}
