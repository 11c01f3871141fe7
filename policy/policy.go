// Package policy centralises the safety rules applied before any request is
// promoted or executed: which action types need human sign-off, how long an
// approval stays valid, and which vault paths may never be deleted. It is
// deliberately decoupled from storage and execution so that the same policy
// value can drive both the promotion sweep and the execution engine.

package policy

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/actiongate/actiongate/model/request"
)

// Default approval windows: a pending social post stays actionable longer
// because publication timing is rarely urgent; everything else expires in a
// day.
const (
	DefaultApprovalWindow       = 24 * time.Hour
	DefaultSocialApprovalWindow = 72 * time.Hour
)

// Policy holds the runtime safety rules. A nil *Policy applies the most
// conservative defaults: every action requires approval and nothing is a
// known recipient.
type Policy struct {
	// ApprovalWindow bounds how long a pending request awaits a decision.
	ApprovalWindow time.Duration
	// SocialApprovalWindow overrides ApprovalWindow for social posts.
	SocialApprovalWindow time.Duration
	// KnownRecipients lists email addresses that may be replied to without
	// sign-off (recipient novelty rule). Matching is case-insensitive.
	KnownRecipients []string
	// ProtectedPaths lists path components that a file-delete request may
	// never touch, regardless of mode or rate limits.
	ProtectedPaths []string
}

// Config is the declarative, serialisable subset of a Policy. Durations are
// carried as strings ("24h", "72h") so the file stays human-editable.
type Config struct {
	ApprovalWindow       string   `json:"approvalWindow,omitempty" yaml:"approvalWindow,omitempty"`
	SocialApprovalWindow string   `json:"socialApprovalWindow,omitempty" yaml:"socialApprovalWindow,omitempty"`
	KnownRecipients      []string `json:"knownRecipients,omitempty" yaml:"knownRecipients,omitempty"`
	ProtectedPaths       []string `json:"protectedPaths,omitempty" yaml:"protectedPaths,omitempty"`
}

// DefaultProtectedPaths mirrors the vault files the assistant must never
// remove on its own.
func DefaultProtectedPaths() []string {
	return []string{
		".obsidian",
		".claude",
		".git",
		".gitkeep",
		"Company_Handbook.md",
		"Business_Goals.md",
		"Dashboard.md",
		"Welcome.md",
	}
}

// FromConfig converts a stored Config back into a runtime Policy, applying
// package defaults for anything unset.
func FromConfig(c *Config) *Policy {
	ret := &Policy{
		ApprovalWindow:       DefaultApprovalWindow,
		SocialApprovalWindow: DefaultSocialApprovalWindow,
		ProtectedPaths:       DefaultProtectedPaths(),
	}
	if c == nil {
		return ret
	}
	if c.ApprovalWindow != "" {
		if d, err := time.ParseDuration(c.ApprovalWindow); err == nil && d > 0 {
			ret.ApprovalWindow = d
		}
	}
	if c.SocialApprovalWindow != "" {
		if d, err := time.ParseDuration(c.SocialApprovalWindow); err == nil && d > 0 {
			ret.SocialApprovalWindow = d
		}
	}
	if len(c.KnownRecipients) > 0 {
		ret.KnownRecipients = append([]string(nil), c.KnownRecipients...)
	}
	if len(c.ProtectedPaths) > 0 {
		ret.ProtectedPaths = append([]string(nil), c.ProtectedPaths...)
	}
	return ret
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	ret := &Config{
		KnownRecipients: append([]string(nil), p.KnownRecipients...),
		ProtectedPaths:  append([]string(nil), p.ProtectedPaths...),
	}
	if p.ApprovalWindow > 0 {
		ret.ApprovalWindow = p.ApprovalWindow.String()
	}
	if p.SocialApprovalWindow > 0 {
		ret.SocialApprovalWindow = p.SocialApprovalWindow.String()
	}
	return ret
}

// IsExpired is the expiration predicate: a request with a deadline in the
// past is no longer actionable. Requests without a deadline never expire.
func IsExpired(req *request.Request, now time.Time) bool {
	if req == nil || req.ExpiresAt == nil {
		return false
	}
	return now.After(*req.ExpiresAt)
}

// Window returns the approval window applicable to the action type.
func (p *Policy) Window(actionType request.ActionType) time.Duration {
	window := DefaultApprovalWindow
	social := DefaultSocialApprovalWindow
	if p != nil {
		if p.ApprovalWindow > 0 {
			window = p.ApprovalWindow
		}
		if p.SocialApprovalWindow > 0 {
			social = p.SocialApprovalWindow
		}
	}
	if actionType == request.ActionSocialPost {
		return social
	}
	return window
}

// RequiresApproval reports whether the request must pass through the
// pending-approval stage. Payments, file deletes and social posts always
// need sign-off; an email only when its recipient is novel. Unknown action
// types always need a human.
func (p *Policy) RequiresApproval(req *request.Request) bool {
	if req == nil {
		return true
	}
	switch req.ActionType {
	case request.ActionPayment, request.ActionFileDelete, request.ActionSocialPost:
		return true
	case request.ActionEmailSend:
		return !p.isKnownRecipient(req)
	default:
		return true
	}
}

func (p *Policy) isKnownRecipient(req *request.Request) bool {
	if p == nil || len(p.KnownRecipients) == 0 {
		return false
	}
	if len(req.Payload) == 0 {
		return false
	}
	var payload request.EmailPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return false
	}
	recipient := strings.ToLower(strings.TrimSpace(payload.To))
	for _, known := range p.KnownRecipients {
		if recipient == strings.ToLower(known) {
			return true
		}
	}
	return false
}

// IsProtected reports whether any component of the path matches a protected
// entry. The check is purely lexical: it must hold even for paths that do
// not currently exist.
func (p *Policy) IsProtected(target string) bool {
	protected := DefaultProtectedPaths()
	if p != nil && len(p.ProtectedPaths) > 0 {
		protected = p.ProtectedPaths
	}
	normalized := strings.ReplaceAll(target, "\\", "/")
	for _, part := range strings.Split(normalized, "/") {
		if part == "" {
			continue
		}
		for _, entry := range protected {
			if part == entry {
				return true
			}
		}
	}
	return false
}
