package request

import (
	"encoding/json"
	"fmt"
)

// Payload is the action-type specific part of a request. Each variant
// carries its own required-field contract, validated at the execution
// engine boundary rather than inside handlers.
type Payload interface {
	Validate() error
}

// EmailPayload describes an outgoing email.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

func (p *EmailPayload) Validate() error {
	if p.To == "" {
		return fmt.Errorf("email payload: missing recipient")
	}
	if p.Subject == "" {
		return fmt.Errorf("email payload: missing subject")
	}
	return nil
}

// PaymentPayload describes a money transfer.
type PaymentPayload struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Recipient string  `json:"recipient"`
	Reference string  `json:"reference,omitempty"`
}

func (p *PaymentPayload) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("payment payload: amount must be positive")
	}
	if p.Currency == "" {
		return fmt.Errorf("payment payload: missing currency")
	}
	if p.Recipient == "" {
		return fmt.Errorf("payment payload: missing recipient")
	}
	return nil
}

// SocialPayload describes a social network post.
type SocialPayload struct {
	Network string `json:"network"`
	Text    string `json:"text"`
}

func (p *SocialPayload) Validate() error {
	if p.Network == "" {
		return fmt.Errorf("social payload: missing network")
	}
	if p.Text == "" {
		return fmt.Errorf("social payload: missing text")
	}
	return nil
}

// FileDeletePayload describes a file removal.
type FileDeletePayload struct {
	Path string `json:"path"`
}

func (p *FileDeletePayload) Validate() error {
	if p.Path == "" {
		return fmt.Errorf("file delete payload: missing path")
	}
	return nil
}

// DecodePayload unmarshals the raw payload into the variant matching the
// request's action type. ActionUnknown has no payload contract and always
// fails; such requests are flagged for human review, never executed.
func DecodePayload(r *Request) (Payload, error) {
	var payload Payload
	switch r.ActionType {
	case ActionEmailSend:
		payload = &EmailPayload{}
	case ActionPayment:
		payload = &PaymentPayload{}
	case ActionSocialPost:
		payload = &SocialPayload{}
	case ActionFileDelete:
		payload = &FileDeletePayload{}
	default:
		return nil, fmt.Errorf("no payload contract for action type %v", r.ActionType)
	}
	if len(r.Payload) == 0 {
		return nil, fmt.Errorf("empty payload for action type %v", r.ActionType)
	}
	if err := json.Unmarshal(r.Payload, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %v payload: %w", r.ActionType, err)
	}
	return payload, nil
}

// EncodePayload marshals a typed payload onto the request. A nil payload
// leaves the request untouched.
func EncodePayload(r *Request, payload Payload) error {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	r.Payload = data
	return nil
}
