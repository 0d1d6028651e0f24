package connection

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResultInvoker is implemented by transports that can return a hub method's
// result, not just its completion.
type ResultInvoker interface {
	Call(ctx context.Context, method string, args ...any) (json.RawMessage, error)
}

// JoinRoom joins a signaling room. The hub answers whether this peer should
// act as the polite side of the negotiation.
func (m *Manager) JoinRoom(ctx context.Context, roomID string) (polite bool, err error) {
	if roomID == "" {
		return false, ErrInvalidArgument
	}

	t, err := m.liveTransport()
	if err != nil {
		return false, err
	}

	ri, ok := t.(ResultInvoker)
	if !ok {
		err = t.Invoke(ctx, MethodJoinRoom, roomID)
		m.metrics.Invocation(MethodJoinRoom, err)
		return false, err
	}

	raw, err := ri.Call(ctx, MethodJoinRoom, roomID)
	m.metrics.Invocation(MethodJoinRoom, err)
	if err != nil {
		return false, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, &polite); err != nil {
		return false, fmt.Errorf("decode %s result: %w", MethodJoinRoom, err)
	}
	return polite, nil
}

func (m *Manager) LeaveRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return ErrInvalidArgument
	}
	return m.Invoke(ctx, MethodLeaveRoom, roomID)
}

// SendMessage relays an SDP offer/answer or any other payload to the room.
func (m *Manager) SendMessage(ctx context.Context, roomID string, payload any) error {
	if roomID == "" {
		return ErrInvalidArgument
	}
	return m.Invoke(ctx, MethodSendMessage, roomID, payload)
}

func (m *Manager) SendIceCandidate(ctx context.Context, roomID string, candidate any) error {
	if roomID == "" {
		return ErrInvalidArgument
	}
	return m.Invoke(ctx, MethodSendIceCandidate, roomID, candidate)
}
