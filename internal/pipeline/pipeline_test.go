package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/files-manager/internal/queue"
	"github.com/bigkaa/goartstore/files-manager/internal/repository"
	"github.com/bigkaa/goartstore/files-manager/internal/storage/contentstore"
	"github.com/bigkaa/goartstore/files-manager/internal/storage/kvstore"
	"github.com/bigkaa/goartstore/files-manager/internal/thumbnail"
)

type testEnv struct {
	queue    *queue.Queue
	repo     *repository.MemoryRepository
	store    *contentstore.Store
	blobs    *flakyBlobs
	pipeline *Pipeline
}

// flakyBlobs — обёртка над ContentStore, отказывающая в записи заданных ширин.
type flakyBlobs struct {
	*contentstore.Store
	mu        sync.Mutex
	failWidth map[string]bool
}

func (f *flakyBlobs) PutDerived(ref, suffix string, data []byte) (string, error) {
	f.mu.Lock()
	fail := f.failWidth[suffix]
	f.mu.Unlock()
	if fail {
		return "", contentstore.ErrIO
	}
	return f.Store.PutDerived(ref, suffix, data)
}

// failingRecords — репозиторий, недоступный при чтении.
type failingRecords struct{}

func (failingRecords) FindByID(context.Context, string) (*model.FileRecord, error) {
	return nil, errors.New("connection refused")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	db, err := kvstore.OpenInMemory(testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	q := queue.New(db, queue.Config{
		MaxAttempts:    3,
		LeaseDuration:  time.Minute,
		RetryBaseDelay: time.Hour,
		RetryMaxDelay:  time.Hour,
	}, testLogger())

	store := contentstore.New(t.TempDir())
	blobs := &flakyBlobs{Store: store, failWidth: map[string]bool{}}
	repo := repository.NewMemoryRepository(testLogger())

	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 5 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}

	return &testEnv{
		queue:    q,
		repo:     repo,
		store:    store,
		blobs:    blobs,
		pipeline: New(q, repo, blobs, cfg, testLogger()),
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// addFile сохраняет содержимое и запись, возвращает запись.
func (e *testEnv) addFile(t *testing.T, owner, name string, kind model.Kind, data []byte) *model.FileRecord {
	t.Helper()
	ref, err := e.store.Put(data)
	require.NoError(t, err)
	rec := model.NewLeaf(owner, name, kind, "", false, ref)
	_, err = e.repo.Insert(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

// runJob ставит задание и обрабатывает его синхронно.
func (e *testEnv) runJob(t *testing.T, fileID, requesterID string) *queue.Job {
	t.Helper()
	ctx := context.Background()

	jobID, err := e.pipeline.Enqueue(ctx, fileID, requesterID)
	require.NoError(t, err)
	require.True(t, e.pipeline.RunOnce(ctx, "test-worker"))

	job, err := e.queue.Get(ctx, jobID)
	require.NoError(t, err)
	return job
}

func TestProcess_ImageProducesAllWidths(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.addFile(t, "u1", "cat.png", model.KindImage, pngBytes(t, 800, 600))

	job := env.runJob(t, rec.ID, "u1")
	assert.Equal(t, queue.StateSucceeded, job.State)

	ref, _ := rec.ContentRef()
	for _, w := range thumbnail.Widths {
		data, err := env.store.Get(contentstore.DerivedRef(ref, w))
		require.NoError(t, err, "миниатюра %d", w)

		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, w, cfg.Width)
	}

	// Исходник не изменён
	original, err := env.store.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t, 800, 600), original)
}

func TestProcess_RegenerationOverwrites(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.addFile(t, "u1", "cat.png", model.KindImage, pngBytes(t, 600, 300))

	assert.Equal(t, queue.StateSucceeded, env.runJob(t, rec.ID, "u1").State)
	assert.Equal(t, queue.StateSucceeded, env.runJob(t, rec.ID, "u1").State)
}

func TestProcess_NonImageSucceedsWithoutDerivatives(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.addFile(t, "u1", "notes.txt", model.KindFile, []byte("hello"))

	job := env.runJob(t, rec.ID, "u1")
	assert.Equal(t, queue.StateSucceeded, job.State)

	ref, _ := rec.ContentRef()
	for _, w := range thumbnail.Widths {
		assert.False(t, env.store.Exists(contentstore.DerivedRef(ref, w)))
	}
}

func TestProcess_PermanentFailures(t *testing.T) {
	env := newTestEnv(t, Config{})
	img := env.addFile(t, "u1", "cat.png", model.KindImage, pngBytes(t, 300, 300))
	broken := env.addFile(t, "u1", "broken.png", model.KindImage, []byte("definitely not an image"))
	lost := env.addFile(t, "u1", "lost.png", model.KindImage, pngBytes(t, 300, 300))
	lostRef, _ := lost.ContentRef()
	require.NoError(t, env.store.Delete(lostRef))

	tests := []struct {
		name      string
		fileID    string
		requester string
		wantErr   string
	}{
		{"нет идентификаторов", "", "", ErrMissingIDs.Error()},
		{"нет владельца", img.ID, "", ErrMissingIDs.Error()},
		{"запись не найдена", "missing", "u1", ErrFileNotFound.Error()},
		{"чужой владелец", img.ID, "intruder", ErrFileNotFound.Error()},
		{"не декодируется", broken.ID, "u1", "не является поддерживаемым изображением"},
		{"содержимое удалено", lost.ID, "u1", "отсутствует"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := env.runJob(t, tc.fileID, tc.requester)
			assert.Equal(t, queue.StateFailed, job.State)
			assert.Equal(t, 1, job.Attempts, "постоянная ошибка не повторяется")
			assert.Contains(t, job.LastError, tc.wantErr)
		})
	}

	failed, err := env.queue.ListFailed(context.Background())
	require.NoError(t, err)
	assert.Len(t, failed, len(tests))
}

func TestProcess_OversizedImageIsPermanent(t *testing.T) {
	env := newTestEnv(t, Config{MaxImagePixels: 100 * 100})
	rec := env.addFile(t, "u1", "big.png", model.KindImage, pngBytes(t, 200, 100))

	job := env.runJob(t, rec.ID, "u1")
	assert.Equal(t, queue.StateFailed, job.State)
	assert.Equal(t, 1, job.Attempts)
	assert.Contains(t, job.LastError, "слишком большое")

	ref, _ := rec.ContentRef()
	for _, width := range thumbnail.Widths {
		assert.False(t, env.store.Exists(contentstore.DerivedRef(ref, width)))
	}
}

func TestProcess_PartialFailureKeepsWrittenDerivatives(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.blobs.failWidth["250"] = true
	rec := env.addFile(t, "u1", "cat.png", model.KindImage, pngBytes(t, 800, 600))

	job := env.runJob(t, rec.ID, "u1")
	assert.Equal(t, queue.StateQueued, job.State, "временная ошибка возвращает задание в очередь")
	assert.Contains(t, job.LastError, "ширина 250")

	ref, _ := rec.ContentRef()
	assert.True(t, env.store.Exists(contentstore.DerivedRef(ref, 500)), "500 записана до сбоя")
	assert.False(t, env.store.Exists(contentstore.DerivedRef(ref, 250)))
	assert.True(t, env.store.Exists(contentstore.DerivedRef(ref, 100)), "100 записана после сбоя")
}

func TestProcess_TimeoutIsTransient(t *testing.T) {
	env := newTestEnv(t, Config{JobTimeout: 50 * time.Millisecond})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	env.pipeline.resize = func(*thumbnail.Source, int) ([]byte, error) {
		<-release
		return nil, errors.New("не должно использоваться")
	}
	rec := env.addFile(t, "u1", "cat.png", model.KindImage, pngBytes(t, 800, 600))

	start := time.Now()
	job := env.runJob(t, rec.ID, "u1")

	assert.Less(t, time.Since(start), 2*time.Second, "воркер не должен ждать зависшее масштабирование")
	assert.Equal(t, queue.StateQueued, job.State)
	assert.Contains(t, job.LastError, context.DeadlineExceeded.Error())
}

func TestProcess_RepositoryErrorIsTransient(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.pipeline.records = failingRecords{}

	job := env.runJob(t, "some-id", "u1")
	assert.Equal(t, queue.StateQueued, job.State)
	assert.Contains(t, job.LastError, "connection refused")
}

func TestPermanent(t *testing.T) {
	base := errors.New("boom")
	wrapped := Permanent(base)

	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
}

func TestWorkers_ProcessEnqueuedJobs(t *testing.T) {
	env := newTestEnv(t, Config{Workers: 3})
	ctx := context.Background()

	var ids []string
	for i := range 5 {
		rec := env.addFile(t, "u1", "img"+strconv.Itoa(i)+".png", model.KindImage, pngBytes(t, 300, 200))
		id, err := env.pipeline.Enqueue(ctx, rec.ID, "u1")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	env.pipeline.Start(ctx)
	defer env.pipeline.Stop()

	require.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := env.queue.Get(ctx, id)
			if err != nil || job.State != queue.StateSucceeded {
				return false
			}
		}
		return true
	}, 10*time.Second, 20*time.Millisecond)
}

func TestReaper_RequeuesExpiredLease(t *testing.T) {
	db, err := kvstore.OpenInMemory(testLogger())
	require.NoError(t, err)
	defer db.Close()

	q := queue.New(db, queue.Config{
		MaxAttempts:    3,
		LeaseDuration:  time.Millisecond,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}, testLogger())
	ctx := context.Background()

	_, err = q.Enqueue(ctx, "f", "u")
	require.NoError(t, err)
	_, err = q.Lease(ctx, "crashed-worker")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	reaper := NewReaper(q, db, time.Hour, testLogger())
	result := reaper.RunOnce(ctx)

	assert.Equal(t, 1, result.Requeued)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, 0, result.Running)
}

func TestReaper_StartStop(t *testing.T) {
	env := newTestEnv(t, Config{})
	reaper := NewReaper(env.queue, nil, 10*time.Millisecond, testLogger())

	reaper.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	reaper.Stop()
}
