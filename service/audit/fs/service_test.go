package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/actiongate/actiongate/service/audit"
	auditfs "github.com/actiongate/actiongate/service/audit/fs"
)

func TestLogAppendsDailyFile(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	svc, err := auditfs.New(base)
	assert.NoError(t, err)

	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	entries := []*audit.Entry{
		{Timestamp: day1, ActionType: "payment", Actor: audit.ActorExecutor, Target: "acme", Result: audit.ResultSimulated, DryRun: true},
		{Timestamp: day1.Add(time.Minute), ActionType: "email_send", Actor: audit.ActorExecutor, Target: "a@b.c", Result: audit.ResultSuccess},
		{Timestamp: day2, ActionType: "social_post", Actor: audit.ActorExecutor, Target: "linkedin", Result: audit.ResultRateLimited,
			Metadata: map[string]string{"retryAfter": "30m"}},
	}
	for _, entry := range entries {
		assert.NoError(t, svc.Log(ctx, entry))
	}

	// one file per day
	_, err = os.Stat(filepath.Join(base, "audit_2025-03-01.jsonl"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "audit_2025-03-02.jsonl"))
	assert.NoError(t, err)

	listed, err := svc.List(ctx, day1)
	assert.NoError(t, err)
	assert.Len(t, listed, 2)
	assert.EqualValues(t, audit.ResultSimulated, listed[0].Result)
	assert.True(t, listed[0].DryRun)
	assert.EqualValues(t, audit.ResultSuccess, listed[1].Result)

	listed, err = svc.List(ctx, day2)
	assert.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.EqualValues(t, "30m", listed[0].Metadata["retryAfter"])

	// day without entries
	listed, err = svc.List(ctx, day2.Add(48*time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, listed)
}

func TestConcurrentWritersDoNotCorruptEntries(t *testing.T) {
	ctx := context.Background()
	svc, err := auditfs.New(t.TempDir())
	assert.NoError(t, err)

	day := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	done := make(chan struct{})
	const writers, perWriter = 4, 10
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < perWriter; i++ {
				_ = svc.Log(ctx, &audit.Entry{
					Timestamp:  day,
					ActionType: "email_send",
					Actor:      audit.ActorExecutor,
					Result:     audit.ResultSuccess,
				})
			}
		}(w)
	}
	for w := 0; w < writers; w++ {
		<-done
	}

	listed, err := svc.List(ctx, day)
	assert.NoError(t, err)
	assert.Len(t, listed, writers*perWriter, "every append is one intact line")
}
