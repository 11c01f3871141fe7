package policy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/actiongate/actiongate/model/request"
)

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	type testCase struct {
		name     string
		req      *request.Request
		expected bool
	}

	tests := []testCase{
		{name: "nil request", req: nil, expected: false},
		{name: "no deadline", req: &request.Request{}, expected: false},
		{name: "deadline in the past", req: &request.Request{ExpiresAt: &past}, expected: true},
		{name: "deadline in the future", req: &request.Request{ExpiresAt: &future}, expected: false},
		{name: "deadline exactly now", req: &request.Request{ExpiresAt: &now}, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualValues(t, tc.expected, IsExpired(tc.req, now))
		})
	}
}

func TestRequiresApproval(t *testing.T) {
	p := &Policy{KnownRecipients: []string{"client@example.com"}}

	emailTo := func(to string) *request.Request {
		payload, _ := json.Marshal(&request.EmailPayload{To: to, Subject: "s"})
		return &request.Request{ActionType: request.ActionEmailSend, Payload: payload}
	}

	assert.True(t, p.RequiresApproval(&request.Request{ActionType: request.ActionPayment}))
	assert.True(t, p.RequiresApproval(&request.Request{ActionType: request.ActionFileDelete}))
	assert.True(t, p.RequiresApproval(&request.Request{ActionType: request.ActionSocialPost}))
	assert.True(t, p.RequiresApproval(&request.Request{ActionType: request.ActionUnknown}))
	assert.False(t, p.RequiresApproval(emailTo("client@example.com")))
	assert.False(t, p.RequiresApproval(emailTo("CLIENT@example.com")), "recipient match is case-insensitive")
	assert.True(t, p.RequiresApproval(emailTo("stranger@example.com")))

	var nilPolicy *Policy
	assert.True(t, nilPolicy.RequiresApproval(emailTo("client@example.com")),
		"nil policy knows no recipients")
}

func TestWindow(t *testing.T) {
	p := FromConfig(nil)
	assert.EqualValues(t, 72*time.Hour, p.Window(request.ActionSocialPost))
	assert.EqualValues(t, 24*time.Hour, p.Window(request.ActionPayment))
	assert.EqualValues(t, 24*time.Hour, p.Window(request.ActionEmailSend))

	custom := FromConfig(&Config{ApprovalWindow: "2h", SocialApprovalWindow: "6h"})
	assert.EqualValues(t, 2*time.Hour, custom.Window(request.ActionFileDelete))
	assert.EqualValues(t, 6*time.Hour, custom.Window(request.ActionSocialPost))
}

func TestIsProtected(t *testing.T) {
	var p *Policy // defaults

	assert.True(t, p.IsProtected(".obsidian/workspace.json"))
	assert.True(t, p.IsProtected("vault/.git/config"))
	assert.True(t, p.IsProtected("Company_Handbook.md"))
	assert.True(t, p.IsProtected("sub/dir/Dashboard.md"))
	assert.False(t, p.IsProtected("Archive/old_notes.md"))
	assert.False(t, p.IsProtected("Dashboard.md.bak"))

	custom := &Policy{ProtectedPaths: []string{"secrets"}}
	assert.True(t, custom.IsProtected("secrets/token.json"))
	assert.False(t, custom.IsProtected("Company_Handbook.md"), "custom list replaces defaults")
}

func TestConfigRoundTrip(t *testing.T) {
	p := &Policy{
		ApprovalWindow:       4 * time.Hour,
		SocialApprovalWindow: 48 * time.Hour,
		KnownRecipients:      []string{"a@b.c"},
		ProtectedPaths:       []string{".git"},
	}
	assert.EqualValues(t, p, FromConfig(ToConfig(p)))
}
