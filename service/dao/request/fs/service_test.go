package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/service/dao"
	reqfs "github.com/actiongate/actiongate/service/dao/request/fs"
)

func TestFsStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	svc, err := reqfs.New(base)
	assert.NoError(t, err)

	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	req := &mrequest.Request{
		ID:         "20250301T080000.000000000-aaaa1111",
		ActionType: mrequest.ActionPayment,
		Stage:      mrequest.StagePendingApproval,
		Priority:   mrequest.PriorityHigh,
		CreatedAt:  created,
	}
	assert.NoError(t, svc.Save(ctx, req))

	// file lands in the stage directory
	_, err = os.Stat(filepath.Join(base, "pending_approval", req.ID+".json"))
	assert.NoError(t, err)

	loaded, err := svc.Load(ctx, req.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, mrequest.StagePendingApproval, loaded.Stage)
	assert.EqualValues(t, mrequest.ActionPayment, loaded.ActionType)

	// CAS transition moves the file between stage directories
	err = svc.Transition(ctx, req.ID, mrequest.StagePendingApproval, mrequest.StageApproved, nil)
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(base, "approved", req.ID+".json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "pending_approval", req.ID+".json"))
	assert.True(t, os.IsNotExist(err), "source copy must be removed")

	// stale CAS is detected
	err = svc.Transition(ctx, req.ID, mrequest.StagePendingApproval, mrequest.StageRejected, nil)
	assert.ErrorIs(t, err, dao.ErrStageConflict)

	assert.NoError(t, svc.Delete(ctx, req.ID))
	_, err = svc.Load(ctx, req.ID)
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestFsStoreObservesExternalMove(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	svc, err := reqfs.New(base)
	assert.NoError(t, err)

	req := &mrequest.Request{
		ID:         "20250301T090000.000000000-bbbb2222",
		ActionType: mrequest.ActionSocialPost,
		Stage:      mrequest.StagePendingApproval,
		Priority:   mrequest.PriorityLow,
		CreatedAt:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, svc.Save(ctx, req))

	// a human approves by moving the file, exactly what an external
	// approval surface does
	src := filepath.Join(base, "pending_approval", req.ID+".json")
	dst := filepath.Join(base, "approved", req.ID+".json")
	assert.NoError(t, os.Rename(src, dst))

	loaded, err := svc.Load(ctx, req.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, mrequest.StageApproved, loaded.Stage, "directory is authoritative")

	approved, err := svc.ListByStage(ctx, mrequest.StageApproved)
	assert.NoError(t, err)
	assert.Len(t, approved, 1)
	assert.EqualValues(t, req.ID, approved[0].ID)
}

func TestFsStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	svc, err := reqfs.New(t.TempDir())
	assert.NoError(t, err)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"cc", "aa", "bb"} {
		req := &mrequest.Request{
			ID:         id,
			ActionType: mrequest.ActionEmailSend,
			Stage:      mrequest.StageApproved,
			CreatedAt:  base.Add(time.Duration(2-i) * time.Minute),
		}
		assert.NoError(t, svc.Save(ctx, req))
	}

	approved, err := svc.ListByStage(ctx, mrequest.StageApproved)
	assert.NoError(t, err)
	assert.Len(t, approved, 3)
	assert.True(t, approved[0].CreatedAt.Before(approved[1].CreatedAt))
	assert.True(t, approved[1].CreatedAt.Before(approved[2].CreatedAt))
}
