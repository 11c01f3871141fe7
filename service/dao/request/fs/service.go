// Package fs implements a filesystem-backed request store over viant/afs.
// Each lifecycle stage maps to one directory and each request to one JSON
// file named by its id, so an external approval surface can decide a
// request simply by moving its file from pending_approval/ to approved/ or
// rejected/; the store only ever observes the result.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/actiongate/actiongate/internal/clock"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/service/dao"
	"github.com/actiongate/actiongate/service/dao/criteria"
	reqdao "github.com/actiongate/actiongate/service/dao/request"
)

// Service implements a filesystem-based request store.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

var _ reqdao.Store = (*Service)(nil)

// New creates a filesystem request store rooted at basePath, ensuring one
// directory per lifecycle stage exists.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fsService := afs.New()
	ctx := context.Background()
	for _, stage := range mrequest.Stages {
		dir := path.Join(basePath, string(stage))
		exists, _ := fsService.Exists(ctx, dir)
		if !exists {
			if err := fsService.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create stage directory %s: %w", dir, err)
			}
		}
	}
	basePath = url.Normalize(basePath, file.Scheme)
	return &Service{basePath: basePath, fs: fsService}, nil
}

// Save persists a request into its stage directory, removing any stale copy
// left in another stage directory (e.g. after an external file move).
func (s *Service) Save(ctx context.Context, r *mrequest.Request) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	if r.ID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, r)
}

func (s *Service) save(ctx context.Context, r *mrequest.Request) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal request %s: %w", r.ID, err)
	}
	target := s.requestPath(r.Stage, r.ID)
	if err = s.fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save request to %s: %w", target, err)
	}
	for _, stage := range mrequest.Stages {
		if stage == r.Stage {
			continue
		}
		stale := s.requestPath(stage, r.ID)
		if exists, _ := s.fs.Exists(ctx, stale); exists {
			_ = s.fs.Delete(ctx, stale)
		}
	}
	return nil
}

// Load retrieves a request by id, searching every stage directory. When an
// external surface left copies in more than one stage (a torn move), the
// latest stage in pipeline order wins.
func (s *Service) Load(ctx context.Context, id string) (*mrequest.Request, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*mrequest.Request, error) {
	var found *mrequest.Request
	for _, stage := range mrequest.Stages {
		filePath := s.requestPath(stage, id)
		exists, err := s.fs.Exists(ctx, filePath)
		if err != nil || !exists {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read request file %s: %w", filePath, err)
		}
		var req mrequest.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("failed to unmarshal request %s: %w", id, err)
		}
		// the directory, not the stored field, is authoritative: a human
		// decision is expressed by moving the file
		req.Stage = stage
		found = &req
	}
	if found == nil {
		return nil, dao.ErrNotFound
	}
	return found, nil
}

// Delete removes a request from whichever stage directory holds it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	for _, stage := range mrequest.Stages {
		filePath := s.requestPath(stage, id)
		if exists, _ := s.fs.Exists(ctx, filePath); exists {
			if err := s.fs.Delete(ctx, filePath); err != nil {
				return fmt.Errorf("failed to delete request file %s: %w", filePath, err)
			}
			deleted = true
		}
	}
	if !deleted {
		return dao.ErrNotFound
	}
	return nil
}

// List returns all requests matching the optional Stage parameter, oldest
// first. Unreadable files are skipped so one corrupt entry cannot block the
// sweep.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*mrequest.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*mrequest.Request
	for _, stage := range mrequest.Stages {
		if !criteria.FilterByStage(string(stage), parameters) {
			continue
		}
		requests, err := s.listStage(ctx, stage)
		if err != nil {
			return nil, err
		}
		out = append(out, requests...)
	}
	sortByCreation(out)
	return out, nil
}

// ListByStage returns requests in the given stage, oldest first.
func (s *Service) ListByStage(ctx context.Context, stage mrequest.Stage) ([]*mrequest.Request, error) {
	return s.List(ctx, dao.NewParameter("Stage", string(stage)))
}

func (s *Service) listStage(ctx context.Context, stage mrequest.Stage) ([]*mrequest.Request, error) {
	dir := path.Join(s.basePath, string(stage))
	objects, err := s.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage directory %s: %w", dir, err)
	}
	var out []*mrequest.Request
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		var req mrequest.Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		req.Stage = stage
		out = append(out, &req)
	}
	return out, nil
}

// Transition performs a compare-and-swap stage move: the request file must
// still reside in the `from` directory; it is then rewritten into the `to`
// directory and removed from the old one, all under the store lock.
func (s *Service) Transition(ctx context.Context, id string, from, to mrequest.Stage, mutate func(*mrequest.Request)) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if current.Stage != from {
		return dao.ErrStageConflict
	}
	if err := current.Transition(to, "", clock.Now()); err != nil {
		return err
	}
	if mutate != nil {
		mutate(current)
	}
	current.Stage = to
	return s.save(ctx, current)
}

func (s *Service) requestPath(stage mrequest.Stage, id string) string {
	return path.Join(s.basePath, string(stage), fmt.Sprintf("%s.json", id))
}

func sortByCreation(requests []*mrequest.Request) {
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}
