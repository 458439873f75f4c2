// Package archive exports conversations to object storage in the
// background. Exports are best effort: a failure is logged, never
// surfaced to the message path.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/circlenet/backend/internal/logging"
	"github.com/circlenet/backend/internal/models"
)

// ObjectStore persists the exported archives.
type ObjectStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ConversationSource reads the messages to export.
type ConversationSource interface {
	ListConversation(ctx context.Context, a, b string) ([]models.Message, error)
}

// ExporterConfig controls the concurrency characteristics of the exporter.
type ExporterConfig struct {
	QueueSize int
	Workers   int
}

// Exporter asynchronously writes conversation archives to object storage.
type Exporter struct {
	source  ConversationSource
	storage ObjectStore
	logger  *slog.Logger

	jobs   chan exportJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type exportJob struct {
	userA string
	userB string
}

var errExporterClosed = errors.New("conversation exporter closed")

// conversationArchive is the JSON shape written to storage.
type conversationArchive struct {
	Participants []string         `json:"participants"`
	ExportedAt   time.Time        `json:"exportedAt"`
	Messages     []archivedRecord `json:"messages"`
}

type archivedRecord struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
}

// NewExporter constructs a background worker pool that writes archives.
func NewExporter(source ConversationSource, storage ObjectStore, cfg ExporterConfig, logger *slog.Logger) *Exporter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	exp := &Exporter{
		source:  source,
		storage: storage,
		logger:  logger,
		jobs:    make(chan exportJob, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	exp.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go exp.worker()
	}

	return exp
}

// Enqueue schedules an archive of the conversation between the two usernames.
func (e *Exporter) Enqueue(ctx context.Context, userA, userB string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ctx.Done():
		return errExporterClosed
	default:
	}

	job := exportJob{userA: userA, userB: userB}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ctx.Done():
		return errExporterClosed
	case e.jobs <- job:
		return nil
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.once.Do(func() {
		e.cancel()
		close(e.jobs)
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (e *Exporter) worker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case job, ok := <-e.jobs:
			if !ok {
				return
			}
			e.handleJob(job)
		}
	}
}

func (e *Exporter) handleJob(job exportJob) {
	if e.source == nil || e.storage == nil {
		e.logger.Error("conversation exporter missing dependencies", "hasSource", e.source != nil, "hasStorage", e.storage != nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ctx, span := logging.StartSpan(logging.WithLogger(ctx, e.logger), "conversation_archive")
	defer span.End()
	logger := logging.FromContext(ctx)

	messages, err := e.source.ListConversation(ctx, job.userA, job.userB)
	if err != nil {
		logger.Error("archive read failed", "userA", job.userA, "userB", job.userB, "error", err)
		return
	}

	now := time.Now().UTC()
	arch := conversationArchive{
		Participants: []string{job.userA, job.userB},
		ExportedAt:   now,
	}
	for _, msg := range messages {
		arch.Messages = append(arch.Messages, archivedRecord{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Recipient: msg.Recipient,
			Body:      msg.Body,
			SentAt:    msg.SentAt,
		})
	}

	payload, err := json.Marshal(arch)
	if err != nil {
		logger.Error("archive encode failed", "userA", job.userA, "userB", job.userB, "error", err)
		return
	}

	key := archiveKey(job.userA, job.userB, now)
	location, err := e.storage.Save(ctx, key, bytes.NewReader(payload))
	if err != nil {
		logger.Error("archive upload failed", "key", key, "error", err)
		return
	}

	logger.Info("conversation archived", "location", location, "messages", len(arch.Messages))
}

func archiveKey(a, b string, at time.Time) string {
	if a > b {
		a, b = b, a
	}
	return path.Join("conversations", fmt.Sprintf("%s-%s", a, b), at.Format("20060102T150405Z")+".json")
}
