package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nifastore/nifa/internal/database"
	"github.com/nifastore/nifa/internal/model"
	"github.com/nifastore/nifa/internal/store"
)

// mockS3Client implements objectStore in memory.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, _ := io.ReadAll(input.Body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var testConfig = Config{
	Bucket:     "nifa",
	AccessKey:  "key",
	SecretKey:  "secret",
	Passphrase: "correct horse",
	Retention:  7 * 24 * time.Hour,
}

func setupManager(t *testing.T, onStatus func(Status)) (*Manager, *mockS3Client, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(
		`INSERT INTO products (category, product_name, price_lojista, price_clients, bought_for, created_at)
		 VALUES ('Perfumes', 'Malbec', 100, 150, 50, '2026-01-01T00:00:00Z')`,
	); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	client := newMockS3()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newManager(testConfig, db, store.NewBackupStore(db), client, onStatus, logger), client, db
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	cfg := testConfig
	cfg.Passphrase = ""
	if cfg.Enabled() {
		t.Error("config without passphrase should be disabled")
	}
	if !testConfig.Enabled() {
		t.Error("expected full config to be enabled")
	}
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, slog.Default())
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("RunNow error = %v, want ErrDisabled", err)
	}
	if err := m.Restore(context.Background(), 1, "x.db"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Restore error = %v, want ErrDisabled", err)
	}

	// Start is a no-op and Stop must not block.
	m.Start(context.Background())
	m.Stop()
}

func TestRunNowAndRestore(t *testing.T) {
	var mu sync.Mutex
	var states []State
	m, client, _ := setupManager(t, func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	b, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if b.Status != model.BackupStatusCompleted || b.SizeBytes == 0 {
		t.Errorf("backup = %+v", b)
	}
	if client.count() != 1 {
		t.Fatalf("objects = %d, want 1", client.count())
	}
	if st := m.Status(); st.State != StateIdle || st.LastBackup == nil {
		t.Errorf("status = %+v", st)
	}

	mu.Lock()
	if len(states) != 2 || states[0] != StateRunning || states[1] != StateIdle {
		t.Errorf("state transitions = %v, want [running idle]", states)
	}
	mu.Unlock()

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), b.ID, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := sql.Open("sqlite", dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	var name string
	if err := restored.QueryRow(`SELECT product_name FROM products`).Scan(&name); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if name != "Malbec" {
		t.Errorf("restored product = %q, want Malbec", name)
	}
}

func TestRestoreUnknown(t *testing.T) {
	m, _, _ := setupManager(t, nil)
	err := m.Restore(context.Background(), 42, filepath.Join(t.TempDir(), "x.db"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m, client, db := setupManager(t, nil)
	client.putErr = errors.New("bucket unavailable")

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	if st := m.Status(); st.State != StateError || st.Error == "" {
		t.Errorf("status = %+v", st)
	}

	list, err := store.NewBackupStore(db).List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Errorf("records = %+v", list)
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	m, client, _ := setupManager(t, nil)

	if _, err := m.RunNow(context.Background()); err != nil {
		t.Fatalf("run backup: %v", err)
	}

	// Nothing is old enough yet.
	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if client.count() != 1 {
		t.Fatalf("objects = %d, want 1", client.count())
	}

	later := time.Now().UTC().Add(8 * 24 * time.Hour)
	m.now = func() time.Time { return later }
	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if client.count() != 0 {
		t.Errorf("objects = %d, want 0 after retention", client.count())
	}
}

func TestStopSafety(t *testing.T) {
	m, _, _ := setupManager(t, nil)
	m.cfg.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()
	m.Stop()
	m.Stop()
}

func TestStartSchedulesNextBackup(t *testing.T) {
	m, client, _ := setupManager(t, nil)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := start
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	m.cfg.Interval = 20 * time.Millisecond

	m.Start(context.Background())
	defer m.Stop()

	next := m.Status().NextBackup
	if next == nil || !next.Equal(start.Add(m.cfg.Interval)) {
		t.Fatalf("NextBackup = %v, want %v", next, start.Add(m.cfg.Interval))
	}

	mu.Lock()
	clock = start.Add(time.Hour)
	mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for client.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if client.count() == 0 {
		t.Fatal("scheduled backup never ran")
	}

	want := start.Add(time.Hour + m.cfg.Interval)
	for time.Now().Before(deadline) {
		if n := m.Status().NextBackup; n != nil && n.Equal(want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("NextBackup = %v, want %v after a tick", m.Status().NextBackup, want)
}
