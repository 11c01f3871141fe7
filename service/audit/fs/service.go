// Package fs persists the audit log as daily JSON-lines files
// (audit_2006-01-02.jsonl) under a base directory via viant/afs. A mutex
// serialises appends so concurrent writers can never interleave inside a
// single entry.
package fs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/service/audit"
)

// Service implements a filesystem audit log.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.Mutex

	// per-day file content cache so appends do not re-read the file
	cacheDay string
	cache    []byte
}

var _ audit.Service = (*Service)(nil)

// New creates a filesystem audit log rooted at basePath.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fsService := afs.New()
	ctx := context.Background()
	exists, _ := fsService.Exists(ctx, basePath)
	if !exists {
		if err := fsService.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	return &Service{basePath: url.Normalize(basePath, file.Scheme), fs: fsService}, nil
}

// Log appends one entry to today's audit file.
func (s *Service) Log(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return nil
	}
	stored := *entry
	if stored.Timestamp.IsZero() {
		stored.Timestamp = clock.Now()
	}
	line, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	day := stored.Timestamp.UTC().Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cacheDay != day {
		filePath := s.auditPath(day)
		var existing []byte
		if ok, _ := s.fs.Exists(ctx, filePath); ok {
			existing, err = s.fs.DownloadWithURL(ctx, filePath)
			if err != nil {
				return fmt.Errorf("failed to read audit file %s: %w", filePath, err)
			}
		}
		s.cacheDay = day
		s.cache = existing
	}

	s.cache = append(s.cache, line...)
	s.cache = append(s.cache, '\n')
	filePath := s.auditPath(day)
	if err := s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(s.cache)); err != nil {
		return fmt.Errorf("failed to write audit file %s: %w", filePath, err)
	}
	return nil
}

// List returns the entries recorded on the given day, in append order.
func (s *Service) List(ctx context.Context, day time.Time) ([]*audit.Entry, error) {
	filePath := s.auditPath(day.UTC().Format("2006-01-02"))

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit file %s: %w", filePath, err)
	}

	var out []*audit.Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry audit.Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		out = append(out, &entry)
	}
	return out, scanner.Err()
}

func (s *Service) auditPath(day string) string {
	return path.Join(s.basePath, fmt.Sprintf("audit_%s.jsonl", day))
}
