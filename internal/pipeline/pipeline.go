// Пакет pipeline — асинхронное построение миниатюр для загруженных изображений.
//
// Задания хранятся в персистентной очереди (queue). Пул воркеров
// арендует задания по одному, обрабатывает их с таймаутом и фиксирует
// результат: успех, повтор с задержкой или окончательный отказ.
// Запрос на загрузку никогда не ждёт конвейер.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/files-manager/internal/queue"
	"github.com/bigkaa/goartstore/files-manager/internal/repository"
	"github.com/bigkaa/goartstore/files-manager/internal/storage/contentstore"
	"github.com/bigkaa/goartstore/files-manager/internal/thumbnail"
)

// Records — чтение метаданных файлов.
type Records interface {
	FindByID(ctx context.Context, id string) (*model.FileRecord, error)
}

// Blobs — чтение исходника и запись миниатюр.
type Blobs interface {
	Get(ref string) ([]byte, error)
	PutDerived(ref, suffix string, data []byte) (string, error)
}

// Config — параметры пула воркеров.
type Config struct {
	// Workers — количество воркеров
	Workers int
	// JobTimeout — максимальная длительность обработки одного задания
	JobTimeout time.Duration
	// PollInterval — интервал опроса очереди без сигнала
	PollInterval time.Duration
	// MaxImagePixels — лимит площади исходника (ширина × высота)
	MaxImagePixels int64
}

// Pipeline — конвейер миниатюр.
type Pipeline struct {
	queue   *queue.Queue
	records Records
	blobs   Blobs
	cfg     Config
	logger  *slog.Logger

	// resize строит одну миниатюру; подменяется в тестах
	resize func(src *thumbnail.Source, width int) ([]byte, error)

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New создаёт конвейер.
func New(q *queue.Queue, records Records, blobs Blobs, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxImagePixels <= 0 {
		cfg.MaxImagePixels = thumbnail.DefaultMaxPixels
	}
	return &Pipeline{
		queue:   q,
		records: records,
		blobs:   blobs,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "thumbnail_pipeline")),
		resize:  (*thumbnail.Source).Resize,
	}
}

// Enqueue ставит задание на построение миниатюр и сразу возвращает его ID.
func (p *Pipeline) Enqueue(ctx context.Context, fileID, requesterID string) (string, error) {
	job, err := p.queue.Enqueue(ctx, fileID, requesterID)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// Start запускает пул воркеров.
// Вызывается один раз при старте приложения.
func (p *Pipeline) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := range p.cfg.Workers {
		p.wg.Add(1)
		go p.worker(workerCtx, fmt.Sprintf("worker-%d", i+1))
	}

	p.logger.Info("Конвейер миниатюр запущен",
		slog.Int("workers", p.cfg.Workers),
		slog.String("job_timeout", p.cfg.JobTimeout.String()),
	)
}

// Stop останавливает воркеров и дожидается завершения текущих заданий.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("Конвейер миниатюр остановлен")
}

// worker — цикл одного воркера: выбирает все готовые задания,
// затем ждёт сигнала очереди, тикера или отмены.
func (p *Pipeline) worker(ctx context.Context, name string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil {
			if processed := p.RunOnce(ctx, name); !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-p.queue.Notify():
		case <-ticker.C:
		}
	}
}

// RunOnce арендует одно задание и обрабатывает его.
// Возвращает false, если готовых заданий не было.
func (p *Pipeline) RunOnce(ctx context.Context, owner string) bool {
	job, err := p.queue.Lease(ctx, owner)
	if errors.Is(err, queue.ErrEmpty) {
		return false
	}
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("Ошибка получения задания", slog.String("error", err.Error()))
		}
		return false
	}

	start := time.Now()
	jobCtx := ctx
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	procErr := p.Process(jobCtx, job)
	jobDurationSeconds.Observe(time.Since(start).Seconds())

	// Результат фиксируется даже при остановке сервиса
	finishCtx := context.WithoutCancel(ctx)

	if procErr == nil {
		if err := p.queue.Complete(finishCtx, job); err != nil {
			p.logger.Warn("Не удалось завершить задание",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			return true
		}
		jobsTotal.WithLabelValues("succeeded").Inc()
		p.logger.Info("Задание выполнено",
			slog.String("job_id", job.ID),
			slog.String("file_id", job.FileID),
			slog.Duration("duration", time.Since(start)),
		)
		return true
	}

	if err := p.queue.Fail(finishCtx, job, procErr, !IsPermanent(procErr)); err != nil {
		p.logger.Warn("Не удалось зафиксировать ошибку задания",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return true
	}
	if job.State == queue.StateFailed {
		jobsTotal.WithLabelValues("failed").Inc()
	} else {
		jobsTotal.WithLabelValues("retried").Inc()
	}
	return true
}

// Process строит миниатюры для файла задания.
//
// Возвращает nil при успехе (в том числе для не-изображений),
// Permanent(err) для ошибок, которые повтор не исправит, и обычную
// ошибку для временных сбоев. Записанные миниатюры не откатываются.
func (p *Pipeline) Process(ctx context.Context, job *queue.Job) error {
	if job.FileID == "" || job.RequesterID == "" {
		return Permanent(ErrMissingIDs)
	}

	rec, err := p.records.FindByID(ctx, job.FileID)
	if errors.Is(err, repository.ErrNotFound) {
		return Permanent(ErrFileNotFound)
	}
	if err != nil {
		return fmt.Errorf("ошибка чтения метаданных: %w", err)
	}
	if rec.OwnerID != job.RequesterID {
		return Permanent(ErrFileNotFound)
	}
	if rec.Kind != model.KindImage {
		return nil
	}

	ref, ok := rec.ContentRef()
	if !ok {
		return Permanent(fmt.Errorf("у изображения %s нет содержимого", rec.ID))
	}

	data, err := p.blobs.Get(ref)
	if errors.Is(err, contentstore.ErrNotFound) {
		return Permanent(fmt.Errorf("содержимое %s отсутствует: %w", ref, err))
	}
	if err != nil {
		return fmt.Errorf("ошибка чтения содержимого: %w", err)
	}

	src, err := thumbnail.Decode(data, p.cfg.MaxImagePixels)
	if err != nil {
		return Permanent(err)
	}

	var failures []error
	for _, width := range thumbnail.Widths {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		out, err := p.resizeCtx(ctx, src, width)
		if err != nil {
			failures = append(failures, fmt.Errorf("ширина %d: %w", width, err))
			continue
		}
		if _, err := p.blobs.PutDerived(ref, strconv.Itoa(width), out); err != nil {
			failures = append(failures, fmt.Errorf("ширина %d: %w", width, err))
			continue
		}
		derivativesTotal.WithLabelValues(strconv.Itoa(width)).Inc()
	}

	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	return nil
}

// resizeCtx выполняет масштабирование, прекращая ожидание при отмене ctx.
// Горутина масштабирования завершится сама, результат будет отброшен.
func (p *Pipeline) resizeCtx(ctx context.Context, src *thumbnail.Source, width int) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := p.resize(src, width)
		ch <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.data, r.err
	}
}
