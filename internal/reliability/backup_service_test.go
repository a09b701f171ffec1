package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	testingpkg "github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore keeps objects in memory
type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failOn    string
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader) error {
	if m.failOn == "upload" {
		return errors.New("upload refused")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Object
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func quiet() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

var fixedNow = time.Date(2024, 6, 1, 4, 0, 0, 0, time.UTC)

func newService(t *testing.T, store ObjectStore) *BackupService {
	t.Helper()

	market, closeMarket := testingpkg.NewTestDB(t, "market")
	t.Cleanup(closeMarket)
	results, closeResults := testingpkg.NewTestDB(t, "results")
	t.Cleanup(closeResults)

	_, err := market.Exec(`INSERT INTO daily_prices (symbol, date, open, high, low, close, adj_close, volume)
		VALUES ('AAA', '2024-01-02', 10, 11, 9, 10, 10, 100)`)
	require.NoError(t, err)

	svc := NewBackupService(store, []*database.DB{market, results}, t.TempDir(), quiet())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := map[string][]byte{}
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[h.Name] = content
	}
	return files
}

func TestCreateAndUpload(t *testing.T) {
	store := newMemoryStore()
	svc := newService(t, store)

	key, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dca-backup-2024-06-01-040000.tar.gz", key)
	require.Contains(t, store.objects, key)

	files := readArchive(t, store.objects[key])
	require.Contains(t, files, "market.db")
	require.Contains(t, files, "results.db")
	require.Contains(t, files, metadataFile)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &meta))
	assert.True(t, meta.Timestamp.Equal(fixedNow))
	require.Len(t, meta.Databases, 2)
	for _, db := range meta.Databases {
		content := files[db.Filename]
		assert.Equal(t, int64(len(content)), db.SizeBytes, db.Name)
		assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(content)), db.Checksum, db.Name)
	}
}

func TestCreateAndUpload_RemovesStaging(t *testing.T) {
	store := newMemoryStore()
	svc := newService(t, store)

	_, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(svc.dataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateAndUpload_UploadError(t *testing.T) {
	store := newMemoryStore()
	store.failOn = "upload"
	svc := newService(t, store)

	_, err := svc.CreateAndUpload(context.Background())
	assert.Error(t, err)
}

func TestListBackups_NewestFirst(t *testing.T) {
	store := newMemoryStore()
	store.objects["dca-backup-2024-05-01-040000.tar.gz"] = []byte("a")
	store.objects["dca-backup-2024-05-03-040000.tar.gz"] = []byte("bb")
	store.objects["dca-backup-garbage.tar.gz"] = []byte("c")
	svc := NewBackupService(store, nil, t.TempDir(), quiet())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "dca-backup-2024-05-03-040000.tar.gz", backups[0].Key)
	assert.Equal(t, int64(2), backups[0].SizeBytes)
}

func TestRotateOldBackups(t *testing.T) {
	store := newMemoryStore()
	for day := 1; day <= 6; day++ {
		store.objects[fmt.Sprintf("dca-backup-2024-05-%02d-040000.tar.gz", day)] = []byte("x")
	}
	svc := NewBackupService(store, nil, t.TempDir(), quiet())
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC) }

	// cutoff is May 5th: 1st to 4th are old, but the newest three (4th-6th) stay
	deleted, err := svc.RotateOldBackups(context.Background(), 5*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	assert.Equal(t, "dca-backup-2024-05-04-040000.tar.gz", remaining[2].Key)
}

func TestRotateOldBackups_KeepsMinimum(t *testing.T) {
	store := newMemoryStore()
	store.objects["dca-backup-2020-01-01-000000.tar.gz"] = []byte("x")
	store.objects["dca-backup-2020-01-02-000000.tar.gz"] = []byte("x")
	svc := NewBackupService(store, nil, t.TempDir(), quiet())

	deleted, err := svc.RotateOldBackups(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.objects, 2)
}

func TestRotateOldBackups_DeleteErrorsAreSkipped(t *testing.T) {
	store := newMemoryStore()
	for day := 1; day <= 5; day++ {
		store.objects[fmt.Sprintf("dca-backup-2020-01-%02d-000000.tar.gz", day)] = []byte("x")
	}
	store.deleteErr = errors.New("denied")
	svc := NewBackupService(store, nil, t.TempDir(), quiet())

	deleted, err := svc.RotateOldBackups(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestNewS3Client(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3Config{}, quiet())
	assert.Error(t, err)

	client, err := NewS3Client(context.Background(), S3Config{
		Endpoint:        "http://127.0.0.1:9000",
		Bucket:          "backups",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}, quiet())
	require.NoError(t, err)
	assert.Equal(t, "backups", client.bucket)
}
