package converters

import (
	"net/http"

	"github.com/novix-ai/novix/pkg/novix/agent"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Codes reported by the surfaces themselves rather than by an AppError
const (
	// ErrCodeInternal is reported for errors that carry no application code
	ErrCodeInternal = "INTERNAL"
	// ErrCodeUnavailable is reported while the server shuts down
	ErrCodeUnavailable = "UNAVAILABLE"
)

// Envelope is the body of every HTTP API response
type Envelope struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg,omitempty"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// Success wraps data in a success envelope
func Success(data interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Data: data}
}

// SuccessMsg is a success envelope carrying only a message
func SuccessMsg(msg string) Envelope {
	return Envelope{Status: StatusSuccess, Msg: msg}
}

// Failure converts err into an error envelope. data carries any partial
// output produced before the failure.
func Failure(err error, data interface{}) Envelope {
	code := apperrors.CodeOf(err)
	msg := apperrors.MessageOf(err)
	if code == "" {
		code = ErrCodeInternal
		msg = "An error was encountered"
	}
	return Envelope{Status: StatusError, Msg: msg, Code: code, Data: data}
}

// HTTPStatus maps an error to its response status code
func HTTPStatus(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidCredential:
		return http.StatusBadRequest
	case apperrors.ErrCodeSessionNotFound, apperrors.ErrCodeListingNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeSessionBusy:
		return http.StatusConflict
	case apperrors.ErrCodeAgentInit, apperrors.ErrCodeInteraction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// InteractRequest is the body of an interact call
type InteractRequest struct {
	Message string `json:"message"`
}

// AddWalletRequest is the body of an add-wallet call
type AddWalletRequest struct {
	PrivateKey string `json:"privateKey"`
}

// WalletAdded describes a newly attached wallet
type WalletAdded struct {
	SessionID string `json:"sessionId"`
	Address   string `json:"address"`
	Network   string `json:"network,omitempty"`
	Message   string `json:"message,omitempty"`
}

// FragmentTexts returns the contents of fragments in order
func FragmentTexts(fragments []agent.Fragment) []string {
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = f.Content
	}
	return out
}
