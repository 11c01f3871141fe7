// Package fs persists the ledger as a single JSON-lines file via viant/afs.
package fs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/service/ledger"
)

// Service implements a filesystem ledger.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.Mutex
	cache    []byte
	loaded   bool
}

var _ ledger.Service = (*Service)(nil)

// New creates a filesystem ledger rooted at basePath.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fsService := afs.New()
	ctx := context.Background()
	exists, _ := fsService.Exists(ctx, basePath)
	if !exists {
		if err := fsService.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	return &Service{basePath: url.Normalize(basePath, file.Scheme), fs: fsService}, nil
}

// Record appends one ledger record.
func (s *Service) Record(ctx context.Context, record *ledger.Record) error {
	if record == nil {
		return nil
	}
	stored := *record
	if stored.RecordedAt.IsZero() {
		stored.RecordedAt = clock.Now()
	}
	line, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.cache = append(s.cache, line...)
	s.cache = append(s.cache, '\n')
	if err := s.fs.Upload(ctx, s.ledgerPath(), file.DefaultFileOsMode, bytes.NewReader(s.cache)); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return nil
}

// List returns all ledger records in append order.
func (s *Service) List(ctx context.Context) ([]*ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	var out []*ledger.Record
	scanner := bufio.NewScanner(bytes.NewReader(s.cache))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record ledger.Record
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		out = append(out, &record)
	}
	return out, scanner.Err()
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	filePath := s.ledgerPath()
	if exists, _ := s.fs.Exists(ctx, filePath); exists {
		data, err := s.fs.DownloadWithURL(ctx, filePath)
		if err != nil {
			return fmt.Errorf("failed to read ledger file: %w", err)
		}
		s.cache = data
	}
	s.loaded = true
	return nil
}

func (s *Service) ledgerPath() string {
	return path.Join(s.basePath, "ledger.jsonl")
}
