package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/actiongate/actiongate/model/request"
)

func TestSlidingWindowPayment(t *testing.T) {
	svc := New(DefaultConfig())
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// 3 payments/day: first three pass, fourth within 24h is denied
	assert.True(t, svc.CheckAndReserve(request.ActionPayment, start))
	assert.True(t, svc.CheckAndReserve(request.ActionPayment, start.Add(time.Hour)))
	assert.True(t, svc.CheckAndReserve(request.ActionPayment, start.Add(2*time.Hour)))
	assert.False(t, svc.CheckAndReserve(request.ActionPayment, start.Add(3*time.Hour)))

	used, max := svc.Status(request.ActionPayment, start.Add(3*time.Hour))
	assert.EqualValues(t, 3, used)
	assert.EqualValues(t, 3, max)

	// sliding, not calendar: once 24h elapse from the first reservation a
	// new one succeeds even though two remain in the window
	assert.True(t, svc.CheckAndReserve(request.ActionPayment, start.Add(24*time.Hour+time.Second)))
	assert.False(t, svc.CheckAndReserve(request.ActionPayment, start.Add(24*time.Hour+2*time.Second)))
}

func TestRetryAfter(t *testing.T) {
	svc := New(Config{SocialPostsPerDay: 1})
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.EqualValues(t, 0, svc.RetryAfter(request.ActionSocialPost, start))
	assert.True(t, svc.CheckAndReserve(request.ActionSocialPost, start))
	assert.False(t, svc.CheckAndReserve(request.ActionSocialPost, start.Add(time.Hour)))
	assert.EqualValues(t, 23*time.Hour, svc.RetryAfter(request.ActionSocialPost, start.Add(time.Hour)))
}

func TestDeniedCheckPrunesStaleReservations(t *testing.T) {
	svc := New(Config{PaymentsPerDay: 2})
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	svc.mu.Lock()
	svc.buckets[request.ActionPayment] = []time.Time{
		now.Add(-25 * time.Hour), // outside the window
		now.Add(-2 * time.Hour),
		now.Add(-time.Hour),
	}
	svc.mu.Unlock()

	// two live reservations fill the limit, so this one is denied
	assert.False(t, svc.CheckAndReserve(request.ActionPayment, now))

	// the stale entry must not survive the denied check
	svc.mu.Lock()
	assert.Len(t, svc.buckets[request.ActionPayment], 2)
	svc.mu.Unlock()
}

func TestUnlimitedCategory(t *testing.T) {
	svc := New(Config{}) // zero config: everything unlimited
	now := time.Now()
	for i := 0; i < 100; i++ {
		assert.True(t, svc.CheckAndReserve(request.ActionEmailSend, now))
	}
	used, max := svc.Status(request.ActionEmailSend, now)
	assert.EqualValues(t, 0, used)
	assert.EqualValues(t, -1, max)
}

func TestUpdateConfigAppliesAtCheckTime(t *testing.T) {
	svc := New(Config{PaymentsPerDay: 1})
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, svc.CheckAndReserve(request.ActionPayment, now))
	assert.False(t, svc.CheckAndReserve(request.ActionPayment, now.Add(time.Minute)))

	// raising the limit takes effect immediately; reservations persist
	svc.UpdateConfig(Config{PaymentsPerDay: 2})
	assert.True(t, svc.CheckAndReserve(request.ActionPayment, now.Add(2*time.Minute)))
	assert.False(t, svc.CheckAndReserve(request.ActionPayment, now.Add(3*time.Minute)))
}

func TestConcurrentReservationsNeverExceedLimit(t *testing.T) {
	svc := New(Config{FileDeletesPerDay: 5})
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.CheckAndReserve(request.ActionFileDelete, now) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 5, allowed)
}

func TestReset(t *testing.T) {
	svc := New(Config{SocialPostsPerDay: 1})
	now := time.Now()
	assert.True(t, svc.CheckAndReserve(request.ActionSocialPost, now))
	assert.False(t, svc.CheckAndReserve(request.ActionSocialPost, now))
	svc.Reset(request.ActionSocialPost)
	assert.True(t, svc.CheckAndReserve(request.ActionSocialPost, now))
}
