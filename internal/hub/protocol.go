package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// recordSeparator terminates every JSON hub protocol frame.
const recordSeparator = 0x1e

// Hub protocol message types.
const (
	typeInvocation       = 1
	typeStreamItem       = 2
	typeCompletion       = 3
	typeStreamInvocation = 4
	typeCancelInvocation = 5
	typePing             = 6
	typeClose            = 7
)

type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// invocationMessage is an outbound client-to-server call.
type invocationMessage struct {
	Type         int    `json:"type"`
	InvocationID string `json:"invocationId,omitempty"`
	Target       string `json:"target"`
	Arguments    []any  `json:"arguments"`
}

// envelope decodes any inbound message.
type envelope struct {
	Type           int               `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage   `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

type pingMessage struct {
	Type int `json:"type"`
}

// encodeFrame serializes v and appends the record separator.
func encodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return append(data, recordSeparator), nil
}

// splitFrames breaks a WebSocket payload into its JSON records. One payload
// may carry several records; empty records are dropped.
func splitFrames(data []byte) [][]byte {
	parts := bytes.Split(data, []byte{recordSeparator})
	frames := parts[:0]
	for _, p := range parts {
		if len(bytes.TrimSpace(p)) > 0 {
			frames = append(frames, p)
		}
	}
	return frames
}

func newInvocation(id, target string, args []any) invocationMessage {
	if args == nil {
		args = []any{}
	}
	return invocationMessage{
		Type:         typeInvocation,
		InvocationID: id,
		Target:       target,
		Arguments:    args,
	}
}
