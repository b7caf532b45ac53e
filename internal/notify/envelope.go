package notify

import (
	"encoding/json"
	"fmt"
)

// Message types sent to websocket clients.
const (
	TypeHello        = "hello"
	TypeNotification = "notification"
)

// Envelope wraps every message sent over the websocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HelloPayload is the first message a client receives.
type HelloPayload struct {
	Participant string `json:"participant"`
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
