package wallet

import (
	"context"
	"encoding/json"

	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/tools"
)

// DetailsTool reports the address and network of the session wallet
type DetailsTool struct {
	tools.BaseTool
	wallet *Wallet
}

// NewDetailsTool creates the get_wallet_details tool
func NewDetailsTool(w *Wallet) *DetailsTool {
	return &DetailsTool{
		BaseTool: tools.NewBaseTool("get_wallet_details",
			"Get details about the configured wallet, including its address and network.", nil),
		wallet: w,
	}
}

func (d *DetailsTool) Run(ctx context.Context, args map[string]interface{}) (string, error) {
	out, err := json.Marshal(map[string]string{
		"address":   d.wallet.Address(),
		"network":   d.wallet.Network(),
		"publicKey": d.wallet.PublicKey(),
	})
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeToolExecution, "failed to encode wallet details", err)
	}
	return string(out), nil
}

// SignMessageTool signs arbitrary text with the session wallet
type SignMessageTool struct {
	tools.BaseTool
	wallet *Wallet
}

// NewSignMessageTool creates the sign_message tool
func NewSignMessageTool(w *Wallet) *SignMessageTool {
	return &SignMessageTool{
		BaseTool: tools.NewBaseTool("sign_message",
			"Sign a text message with the configured wallet using the personal_sign scheme.",
			tools.ObjectSchema(map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "The message to sign",
					"minLength":   1,
				},
			}, "message")),
		wallet: w,
	}
}

func (s *SignMessageTool) Run(ctx context.Context, args map[string]interface{}) (string, error) {
	msg, ok := args["message"].(string)
	if !ok || msg == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "message is required", nil)
	}
	return s.wallet.SignMessage(msg), nil
}

// Tools returns the capability providers bound to w
func Tools(w *Wallet) []tools.Tool {
	return []tools.Tool{NewDetailsTool(w), NewSignMessageTool(w)}
}
