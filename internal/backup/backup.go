// Package backup takes encrypted snapshots of the catalog database and keeps
// them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nifastore/nifa/internal/model"
	"github.com/nifastore/nifa/internal/store"
	_ "modernc.org/sqlite"
)

var (
	ErrDisabled   = errors.New("backup not configured")
	ErrInProgress = errors.New("backup already in progress")
	ErrNotFound   = errors.New("backup not found")
)

// objectStore is the subset of the S3 client the manager uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Prefix is prepended to every object key. Defaults to "catalog".
	Prefix     string
	Passphrase string
	// Interval between scheduled backups. Zero disables the schedule.
	Interval time.Duration
	// Retention is how long backups are kept. Zero keeps them forever.
	Retention time.Duration
}

// Enabled reports whether storage credentials and a passphrase are set.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	NextBackup *time.Time `json:"next_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// Manager runs backups on demand and on a schedule. At most one backup runs
// at a time.
type Manager struct {
	mu       sync.RWMutex
	status   Status
	onStatus func(Status)

	running sync.Mutex

	cfg     Config
	db      *sql.DB
	backups *store.BackupStore
	client  objectStore
	logger  *slog.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns a disabled manager when cfg is not Enabled. onStatus,
// if non-nil, is called on every state change.
func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, onStatus func(Status), logger *slog.Logger) *Manager {
	var client objectStore
	if cfg.Enabled() {
		client = newS3Client(cfg)
	}
	return newManager(cfg, db, bs, client, onStatus, logger)
}

func newManager(cfg Config, db *sql.DB, bs *store.BackupStore, client objectStore, onStatus func(Status), logger *slog.Logger) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = "catalog"
	}
	m := &Manager{
		cfg:      cfg,
		db:       db,
		backups:  bs,
		client:   client,
		onStatus: onStatus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		status:   Status{State: StateDisabled},
	}
	if client != nil {
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
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

// Start begins the scheduled backup loop. It is a no-op when the manager is
// disabled or no interval is configured.
func (m *Manager) Start(ctx context.Context) {
	if m.client == nil || m.cfg.Interval <= 0 {
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()
	m.setNextBackup(m.now().Add(m.cfg.Interval))

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
				if err := m.Cleanup(ctx); err != nil {
					m.logger.Error("backup cleanup failed", "error", err)
				}
				m.setNextBackup(m.now().Add(m.cfg.Interval))
			}
		}
	}()
}

// Stop ends the scheduled loop and waits for it. Safe to call repeatedly.
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
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	if s.NextBackup == nil {
		s.NextBackup = m.status.NextBackup
	}
	m.status = s
	m.mu.Unlock()
	if m.onStatus != nil {
		m.onStatus(s)
	}
}

func (m *Manager) setNextBackup(t time.Time) {
	m.mu.Lock()
	m.status.NextBackup = &t
	m.mu.Unlock()
}

// RunNow snapshots the database, encrypts the snapshot and uploads it.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}
	if !m.running.TryLock() {
		return nil, ErrInProgress
	}
	defer m.running.Unlock()

	key := fmt.Sprintf("%s/%s.db.enc", m.cfg.Prefix, m.now().Format("2006-01-02T150405.000Z"))
	record, err := m.backups.Create(key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	fail := func(step string, err error) (*model.Backup, error) {
		if uerr := m.backups.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark backup failed", "id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return fail("snapshot", err)
	}

	sealed, err := Seal(snapshot, m.cfg.Passphrase)
	if err != nil {
		return fail("encrypt", err)
	}

	if err := m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		return fail("mark uploading", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return fail("upload", err)
	}

	if err := m.backups.UpdateCompleted(record.ID, int64(len(sealed))); err != nil {
		return fail("mark completed", err)
	}

	now := m.now()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup completed", "key", key, "bytes", len(sealed))

	return m.backups.GetByID(record.ID)
}

// snapshot returns a consistent copy of the live database. VACUUM INTO works
// for file and in-memory databases alike.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "nifa-backup-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	return os.ReadFile(path)
}

// Cleanup deletes backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context) error {
	if m.client == nil || m.cfg.Retention <= 0 {
		return nil
	}

	keys, err := m.backups.DeleteOlderThan(m.now().Add(-m.cfg.Retention))
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("removed expired backups", "count", len(keys))
	}
	return nil
}

// Restore downloads backup id, decrypts it, checks its integrity and writes
// the database to dstPath. The live database is left untouched.
func (m *Manager) Restore(ctx context.Context, id int64, dstPath string) error {
	if m.client == nil {
		return ErrDisabled
	}

	record, err := m.backups.GetByID(id)
	if err != nil {
		return fmt.Errorf("get backup: %w", err)
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return ErrNotFound
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(record.ObjectKey),
	})
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	sealed, err := io.ReadAll(result.Body)
	result.Body.Close()
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}

	plaintext, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}

	tmp := dstPath + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		return fmt.Errorf("move restored db: %w", err)
	}
	return nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
