// Package backup exports the catalog collections as encrypted snapshots to
// S3-compatible storage and imports them back.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/katalog/internal/docstore"
	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/store"
)

var (
	ErrNotConfigured = errors.New("export not configured: S3 credentials or passphrase missing")
	ErrNotFound      = errors.New("export not found")
)

// Collections are the document collections included in every export.
var Collections = []string{model.CollectionItems, model.CollectionRegions, model.CollectionManualEntries}

const snapshotVersion = 1

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) valid() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3            S3Config
	Passphrase    string
	Interval      time.Duration // 0 disables scheduled exports
	RetentionDays int
}

// State represents the export manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastExport *time.Time `json:"last_export,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the export state changes.
type StatusCallback func(Status)

// Snapshot is the plaintext content of an export.
type Snapshot struct {
	Version     int                            `json:"version"`
	CreatedAt   time.Time                      `json:"created_at"`
	Collections map[string][]docstore.Document `json:"collections"`
}

// Documents returns the number of documents in the snapshot.
func (s Snapshot) Documents() int {
	n := 0
	for _, docs := range s.Collections {
		n += len(docs)
	}
	return n
}

// Manager runs catalog exports, on demand and on a schedule.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	client   s3Client

	// runMu keeps exports and restores from overlapping.
	runMu sync.Mutex

	docs    *docstore.Store
	exports *store.ExportStore
	logger  *slog.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, docs *docstore.Store, exports *store.ExportStore, callback StatusCallback, logger *slog.Logger) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:      cfg,
		docs:     docs,
		exports:  exports,
		callback: callback,
		logger:   logger,
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	if cfg.S3.valid() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start begins the scheduled export loop. It is a no-op when exports are
// disabled or no interval is configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled || m.cfg.Interval <= 0 || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.scheduled(ctx)
			}
		}
	}()
}

// Stop gracefully stops the export loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) fail(id int64, err error) error {
	if id != 0 {
		if uerr := m.exports.UpdateStatus(id, model.ExportStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark export failed", "id", id, "error", uerr)
		}
	}
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return err
}

func (m *Manager) scheduled(ctx context.Context) {
	if _, err := m.Run(ctx); err != nil {
		m.logger.Error("scheduled export failed", "error", err)
	}
	if err := m.Cleanup(ctx); err != nil {
		m.logger.Error("export cleanup failed", "error", err)
	}
}

// Snapshot reads the current content of every exported collection.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Version:     snapshotVersion,
		CreatedAt:   m.now().UTC(),
		Collections: make(map[string][]docstore.Document, len(Collections)),
	}
	for _, name := range Collections {
		docs, err := m.docs.Collection(name).List(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("read %s: %w", name, err)
		}
		snap.Collections[name] = docs
	}
	return snap, nil
}

// Run exports the catalog now and returns the completed export record.
func (m *Manager) Run(ctx context.Context) (*model.Export, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()
	if client == nil {
		return nil, ErrNotConfigured
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, m.fail(0, err)
	}

	timestamp := snap.CreatedAt.Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("katalog-%s.json.enc", timestamp)
	s3Key := "exports/" + filename

	record, err := m.exports.Create(filename, s3Key)
	if err != nil {
		return nil, m.fail(0, fmt.Errorf("create export record: %w", err))
	}

	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("encode snapshot: %w", err))
	}
	enc, err := Encrypt(plain, passphrase)
	if err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("encrypt: %w", err))
	}

	if err := m.exports.UpdateStatus(record.ID, model.ExportStatusUploading, ""); err != nil {
		m.logger.Error("mark export uploading", "id", record.ID, "error", err)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s3Key),
		Body:          bytes.NewReader(enc),
		ContentLength: aws.Int64(int64(len(enc))),
	})
	if err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("upload to s3: %w", err))
	}

	if err := m.exports.UpdateCompleted(record.ID, int64(len(enc)), snap.Documents()); err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("complete export record: %w", err))
	}

	now := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastExport: &now})
	m.logger.Info("export completed", "id", record.ID, "key", s3Key, "documents", snap.Documents())

	return m.exports.GetByID(record.ID)
}

// Restore downloads an export and writes every document back into its
// collection. Documents are upserted by id; documents created after the
// export are left in place. It returns the number of documents written.
func (m *Manager) Restore(ctx context.Context, exportID int64) (int, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()
	if client == nil {
		return 0, ErrNotConfigured
	}

	record, err := m.exports.GetByID(exportID)
	if err != nil {
		return 0, fmt.Errorf("get export: %w", err)
	}
	if record == nil || record.Status != model.ExportStatusCompleted {
		return 0, ErrNotFound
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return 0, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	enc, err := io.ReadAll(result.Body)
	if err != nil {
		return 0, fmt.Errorf("read export: %w", err)
	}
	plain, err := Decrypt(enc, passphrase)
	if err != nil {
		return 0, fmt.Errorf("decrypt export: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	written := 0
	for _, name := range Collections {
		coll := m.docs.Collection(name)
		for _, d := range snap.Collections[name] {
			if err := coll.Set(ctx, d.ID, d.Data); err != nil {
				return written, fmt.Errorf("restore %s/%s: %w", name, d.ID, err)
			}
			written++
		}
	}
	m.logger.Info("export restored", "id", exportID, "documents", written)
	return written, nil
}

// Cleanup deletes exports older than the retention period, locally and in
// the bucket.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	days := m.cfg.RetentionDays
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := m.now().UTC().AddDate(0, 0, -days)
	keys, err := m.exports.DeleteOlderThan(before)
	if err != nil {
		return fmt.Errorf("delete old exports: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete s3 object", "key", key, "error", err)
		}
	}
	return nil
}
