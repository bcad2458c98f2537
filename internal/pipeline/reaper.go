// reaper.go — фоновый возврат заданий с истёкшей арендой.
//
// Reaper выполняет две задачи:
//  1. Возвращает running-задания с истёкшей арендой в очередь
//     (или в журнал отказов, если попытки исчерпаны)
//  2. Запускает сборку мусора value log Badger
//
// Запускается как горутина с периодическим тикером (FM_REAPER_INTERVAL).
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/bigkaa/goartstore/files-manager/internal/queue"
	"github.com/bigkaa/goartstore/files-manager/internal/storage/kvstore"
)

// gcDiscardRatio — доля мусора в файле value log, при которой он переписывается.
const gcDiscardRatio = 0.5

// ReapResult — результат одного запуска reaper.
type ReapResult struct {
	// Requeued — задания, возвращённые в очередь
	Requeued int
	// Failed — задания, переведённые в failed
	Failed int
	// Queued и Running — незавершённые задания после запуска
	Queued  int
	Running int
	// GCCycles — количество переписанных файлов value log
	GCCycles int
	// Duration — длительность выполнения
	Duration time.Duration
}

// Reaper — фоновый сервис обслуживания очереди.
type Reaper struct {
	queue    *queue.Queue
	db       *badger.DB
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper создаёт reaper. db может быть nil — тогда GC не выполняется.
func NewReaper(q *queue.Queue, db *badger.DB, interval time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		queue:    q,
		db:       db,
		interval: interval,
		logger:   logger.With(slog.String("component", "reaper")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (r *Reaper) Start(ctx context.Context) {
	reapCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(reapCtx)

	r.logger.Info("Reaper запущен",
		slog.String("interval", r.interval.String()),
	)
}

// Stop останавливает фоновый процесс.
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	r.logger.Info("Reaper остановлен")
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	// Первый запуск — сразу после старта: подбираем задания,
	// брошенные предыдущим процессом
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл обслуживания.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (r *Reaper) RunOnce(ctx context.Context) *ReapResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := &ReapResult{}

	requeued, failed, err := r.queue.RequeueExpired(ctx)
	if err != nil {
		r.logger.Error("Ошибка возврата просроченных заданий",
			slog.String("error", err.Error()),
		)
	}
	result.Requeued = requeued
	result.Failed = failed

	queued, running, err := r.queue.Pending(ctx)
	if err == nil {
		result.Queued = queued
		result.Running = running
		queuePending.WithLabelValues(string(queue.StateQueued)).Set(float64(queued))
		queuePending.WithLabelValues(string(queue.StateRunning)).Set(float64(running))
	}

	if r.db != nil {
		cycles, err := kvstore.CollectGarbage(r.db, gcDiscardRatio)
		if err != nil {
			r.logger.Warn("Ошибка сборки мусора Badger", slog.String("error", err.Error()))
		}
		result.GCCycles = cycles
	}

	result.Duration = time.Since(start)

	reaperRunsTotal.Inc()
	reaperRequeuedTotal.Add(float64(requeued))

	level := slog.LevelDebug
	if requeued > 0 || failed > 0 {
		level = slog.LevelInfo
	}
	r.logger.Log(ctx, level, "Reaper завершён",
		slog.Int("requeued", result.Requeued),
		slog.Int("failed", result.Failed),
		slog.Int("queued", result.Queued),
		slog.Int("running", result.Running),
		slog.Duration("duration", result.Duration),
	)

	return result
}
