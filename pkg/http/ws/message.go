package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeSelectAnswer = "select_answer"
	TypeGoToQuestion = "go_to_question"
	TypePrevious     = "previous"
	TypeNext         = "next"
	TypeSubmit       = "submit"

	// Server -> Client
	TypeState     = "state"
	TypeTick      = "tick"
	TypeSubmitted = "submitted"
	TypeError     = "error"
	TypePing      = "ping"
	TypePong      = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message. A nil payload is omitted.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = data
	return msg, nil
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst interface{}) error {
	if len(m.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(m.Payload, dst)
}

// Client Messages (incoming)

type SelectAnswerPayload struct {
	Option string `json:"option"`
}

type GoToQuestionPayload struct {
	Index int `json:"index"`
}

// Server Messages (outgoing)

type TickPayload struct {
	SessionID        string `json:"session_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Clock            string `json:"clock"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
