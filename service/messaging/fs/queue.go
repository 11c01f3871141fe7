// Package fs implements a filesystem-backed queue over viant/afs so that
// producers and consumers can live in different processes: watchers spool
// intake into pending/, the orchestrator consumes it, and acknowledged
// messages are archived for inspection.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"

	"github.com/actiongate/actiongate/service/messaging"
)

// Config holds configuration for the filesystem queue.
type Config struct {
	BasePath   string
	MaxRetries int
}

// DefaultConfig returns a default queue configuration rooted under basePath.
func DefaultConfig(basePath string) Config {
	return Config{BasePath: basePath, MaxRetries: 3}
}

// Message implements messaging.Message for the filesystem queue.
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Retries   int       `json:"retries"`

	queue     *Queue[T]
	name      string
	mu        sync.Mutex
	processed bool
}

// T returns the message payload.
func (m *Message[T]) T() *T { return &m.Data }

// Ack moves the message file to the completed directory.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return m.queue.finish(context.Background(), m, m.queue.completedDir)
}

// Nack re-queues the message for another attempt, or parks it in the dead
// letter directory once the retry limit is exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	if m.Retries > m.queue.config.MaxRetries {
		return m.queue.finish(context.Background(), m, m.queue.dlqDir)
	}
	return m.queue.finish(context.Background(), m, m.queue.pendingDir)
}

// Queue implements a filesystem-based messaging.Queue.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	completedDir  string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-based queue, ensuring its directory
// layout exists.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		completedDir:  path.Join(config.BasePath, "completed"),
		dlqDir:        path.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create queue directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish writes a new message into the pending directory. The filename
// starts with the creation timestamp so consumption stays oldest-first.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	msg := &Message[T]{
		ID:        uuid.New().String(),
		Data:      *t,
		CreatedAt: time.Now(),
	}
	msg.name = fmt.Sprintf("%d-%s.json", msg.CreatedAt.UnixNano(), msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	target := path.Join(q.pendingDir, msg.name)
	if err := q.fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Consume claims the oldest pending message by moving it into the
// processing directory. It returns (nil, nil) when the queue is empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	var oldest storage.Object
	for _, obj := range objects {
		if obj.IsDir() || !strings.HasSuffix(obj.Name(), ".json") {
			continue
		}
		if oldest == nil || obj.Name() < oldest.Name() {
			oldest = obj
		}
	}
	if oldest == nil {
		return nil, nil
	}

	data, err := q.fs.DownloadWithURL(ctx, oldest.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", oldest.Name(), err)
	}
	msg := &Message[T]{}
	if err := json.Unmarshal(data, msg); err != nil {
		// park the unreadable file so it cannot wedge the queue
		_ = q.fs.Move(ctx, oldest.URL(), path.Join(q.dlqDir, "invalid-"+oldest.Name()))
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", oldest.Name(), err)
	}
	msg.queue = q
	msg.name = oldest.Name()

	// claim: write into processing first, then remove from pending
	if err := q.fs.Upload(ctx, path.Join(q.processingDir, msg.name), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to claim message %s: %w", msg.name, err)
	}
	if err := q.fs.Delete(ctx, oldest.URL()); err != nil {
		return nil, fmt.Errorf("failed to remove claimed message %s: %w", msg.name, err)
	}
	return msg, nil
}

// finish rewrites the message into targetDir and removes the processing
// copy.
func (q *Queue[T]) finish(ctx context.Context, m *Message[T], targetDir string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.fs.Upload(ctx, path.Join(targetDir, m.name), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to finish message %s: %w", m.name, err)
	}
	processing := path.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		_ = q.fs.Delete(ctx, processing)
	}
	return nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
