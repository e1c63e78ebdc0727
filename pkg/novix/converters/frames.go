package converters

import (
	"encoding/json"
	"fmt"

	"github.com/novix-ai/novix/pkg/novix/agent"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
)

// Client to server events
const (
	EventCreateSession = "create_session"
	EventInteract      = "interact"
	EventAddWallet     = "add_wallet"
	EventDeleteSession = "delete_session"
)

// Server to client events
const (
	EventSessionCreated  = "session_created"
	EventResponse        = "response"
	EventInteractionDone = "interaction_done"
	EventWalletAdded     = "wallet_added"
	EventSessionDeleted  = "session_deleted"
	EventError           = "error"
)

// Frame is one socket message: an event name and its JSON payload
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes payload under event
func NewFrame(event string, payload interface{}) (Frame, error) {
	f := Frame{Event: event}
	if payload == nil {
		return f, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	f.Data = data
	return f, nil
}

// DecodeFrame parses a raw socket message
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, apperrors.New(apperrors.ErrCodeInvalidInput, "Malformed message", err)
	}
	if f.Event == "" {
		return Frame{}, apperrors.New(apperrors.ErrCodeInvalidInput, "Event name is required", nil)
	}
	return f, nil
}

// Decode unmarshals the frame payload into v. An absent payload leaves v zero.
func (f Frame) Decode(v interface{}) error {
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("Malformed %s payload", f.Event), err)
	}
	return nil
}

// SessionRef names a session in socket payloads
type SessionRef struct {
	SessionID string `json:"sessionId"`
}

// InteractPayload is the interact event body
type InteractPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// AddWalletPayload is the add_wallet event body
type AddWalletPayload struct {
	SessionID  string `json:"sessionId"`
	PrivateKey string `json:"privateKey"`
}

// ResponsePayload carries one fragment to a socket client
type ResponsePayload struct {
	SessionID string             `json:"sessionId,omitempty"`
	Content   string             `json:"content"`
	Kind      agent.FragmentKind `json:"kind"`
	Tool      string             `json:"tool,omitempty"`
	IsError   bool               `json:"isError,omitempty"`
}

// NewResponsePayload converts a fragment for the socket surface
func NewResponsePayload(sessionID string, f agent.Fragment) ResponsePayload {
	return ResponsePayload{
		SessionID: sessionID,
		Content:   f.Content,
		Kind:      f.Kind,
		Tool:      f.Tool,
		IsError:   f.IsError,
	}
}

// MessagePayload is a human readable acknowledgement
type MessagePayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

// ErrorPayload is the error event body
type ErrorPayload struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Event     string `json:"event,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// NewErrorPayload converts err for the socket surface
func NewErrorPayload(event, sessionID string, err error) ErrorPayload {
	env := Failure(err, nil)
	return ErrorPayload{
		Message:   env.Msg,
		Code:      env.Code,
		Event:     event,
		SessionID: sessionID,
	}
}
