// Пакет queue — персистентная очередь заданий на миниатюры поверх Badger.
//
// Семантика at-least-once: задание выдаётся воркеру в аренду
// (Lease) и остаётся в очереди до Complete/Fail. Если воркер пропал,
// RequeueExpired возвращает просроченную аренду в очередь.
// Порядок выдачи приблизительно FIFO: ключи — UUIDv7.
//
// Раскладка ключей:
//
//	job:<id>    — queued и running
//	done:<id>   — succeeded, хранится с TTL
//	failed:<id> — журнал окончательных отказов
//	corrupt:<key> — нечитаемые записи, вынесенные из job:
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	activePrefix  = "job:"
	donePrefix    = "done:"
	failedPrefix  = "failed:"
	corruptPrefix = "corrupt:"
)

// Ошибки очереди.
var (
	// ErrEmpty — нет заданий, готовых к выдаче.
	ErrEmpty = errors.New("очередь пуста")
	// ErrNotFound — задание не найдено.
	ErrNotFound = errors.New("задание не найдено")
	// ErrLeaseLost — аренда истекла и задание передано другому воркеру.
	ErrLeaseLost = errors.New("аренда задания потеряна")
	// ErrInvalidTransition — недопустимый переход состояния.
	ErrInvalidTransition = errors.New("недопустимый переход состояния")
)

// Config — параметры очереди.
type Config struct {
	// MaxAttempts — максимальное число аренд одного задания
	MaxAttempts int
	// LeaseDuration — длительность аренды
	LeaseDuration time.Duration
	// RetryBaseDelay и RetryMaxDelay — границы экспоненциальной задержки повтора
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// SucceededTTL — сколько хранить выполненные задания
	SucceededTTL time.Duration
}

// Queue — персистентная очередь заданий.
type Queue struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	// mu сериализует операции чтение-изменение-запись внутри процесса.
	// Транзакции Badger дополнительно защищают от конфликтов.
	mu     sync.Mutex
	notify chan struct{}
	now    func() time.Time
}

// New создаёт очередь поверх открытого Badger.
func New(db *badger.DB, cfg Config, logger *slog.Logger) *Queue {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.SucceededTTL <= 0 {
		cfg.SucceededTTL = 24 * time.Hour
	}
	return &Queue{
		db:     db,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "job_queue")),
		notify: make(chan struct{}, 1),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Notify возвращает канал, сигнализирующий о появлении задания.
// Сигналы схлопываются: один сигнал может означать несколько заданий.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Enqueue сохраняет новое задание в состоянии queued.
func (q *Queue) Enqueue(ctx context.Context, fileID, requesterID string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации ID задания: %w", err)
	}

	now := q.now()
	job := &Job{
		ID:          id.String(),
		FileID:      fileID,
		RequesterID: requesterID,
		State:       StateQueued,
		NotBefore:   now,
		EnqueuedAt:  now,
		UpdatedAt:   now,
	}

	q.mu.Lock()
	err = q.db.Update(func(txn *badger.Txn) error {
		return putJob(txn, activePrefix, job, 0)
	})
	q.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения задания: %w", err)
	}

	q.signal()
	q.logger.Debug("Задание поставлено в очередь",
		slog.String("job_id", job.ID),
		slog.String("file_id", fileID),
	)
	return job, nil
}

// Lease выдаёт первое готовое задание в аренду воркеру owner.
// Возвращает ErrEmpty, если готовых заданий нет.
func (q *Queue) Lease(ctx context.Context, owner string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var leased *Job
	err := q.db.Update(func(txn *badger.Txn) error {
		bad, err := scan(txn, activePrefix, func(job *Job) bool {
			if job.State == StateQueued && !job.NotBefore.After(now) {
				leased = job
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if err := q.quarantine(txn, bad); err != nil {
			return err
		}
		if leased == nil {
			return nil
		}

		if err := leased.transition(StateRunning, now); err != nil {
			return err
		}
		leased.Attempts++
		leased.LeaseUntil = now.Add(q.cfg.LeaseDuration)
		leased.LeaseOwner = owner
		return putJob(txn, activePrefix, leased, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка выдачи задания: %w", err)
	}
	if leased == nil {
		return nil, ErrEmpty
	}
	return leased, nil
}

// Complete переводит арендованное задание в succeeded.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.db.Update(func(txn *badger.Txn) error {
		stored, err := q.ownedJob(txn, job)
		if err != nil {
			return err
		}
		if err := stored.transition(StateSucceeded, q.now()); err != nil {
			return err
		}
		*job = *stored
		return moveJob(txn, stored, donePrefix, q.cfg.SucceededTTL)
	})
}

// Fail фиксирует неуспешную попытку. Временная ошибка возвращает задание
// в очередь с экспоненциальной задержкой, пока не исчерпаны попытки;
// иначе задание переходит в failed и попадает в журнал отказов.
// job обновляется новым состоянием.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error, retryable bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reason := "неизвестная ошибка"
	if cause != nil {
		reason = cause.Error()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.db.Update(func(txn *badger.Txn) error {
		stored, err := q.ownedJob(txn, job)
		if err != nil {
			return err
		}
		if err := q.fail(txn, stored, reason, retryable); err != nil {
			return err
		}
		*job = *stored
		return nil
	})
}

// RequeueExpired возвращает задания с просроченной арендой в очередь
// (или в failed, если попытки исчерпаны).
func (q *Queue) RequeueExpired(ctx context.Context) (requeued, failed int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	err = q.db.Update(func(txn *badger.Txn) error {
		var expired []*Job
		bad, err := scan(txn, activePrefix, func(job *Job) bool {
			if job.leaseExpired(now) {
				expired = append(expired, job)
			}
			return true
		})
		if err != nil {
			return err
		}
		if err := q.quarantine(txn, bad); err != nil {
			return err
		}

		for _, job := range expired {
			q.logger.Warn("Аренда задания истекла",
				slog.String("job_id", job.ID),
				slog.String("lease_owner", job.LeaseOwner),
				slog.Int("attempts", job.Attempts),
			)
			if err := q.fail(txn, job, "аренда истекла", true); err != nil {
				return err
			}
			if job.State == StateFailed {
				failed++
			} else {
				requeued++
			}
		}
		return nil
	})
	if err == nil && requeued > 0 {
		q.signal()
	}
	return requeued, failed, err
}

// Get возвращает задание по ID из любого раздела.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var job *Job
	err := q.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{activePrefix, donePrefix, failedPrefix} {
			found, err := getJob(txn, prefix+id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			job = found
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListFailed возвращает журнал окончательно отказавших заданий.
func (q *Queue) ListFailed(ctx context.Context) ([]*Job, error) {
	return q.list(ctx, failedPrefix)
}

// Pending возвращает количество заданий в состояниях queued и running.
func (q *Queue) Pending(ctx context.Context) (queued, running int, err error) {
	jobs, err := q.list(ctx, activePrefix)
	if err != nil {
		return 0, 0, err
	}
	for _, job := range jobs {
		if job.State == StateRunning {
			running++
		} else {
			queued++
		}
	}
	return queued, running, nil
}

func (q *Queue) list(ctx context.Context, prefix string) ([]*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var jobs []*Job
	err := q.db.View(func(txn *badger.Txn) error {
		bad, err := scan(txn, prefix, func(job *Job) bool {
			jobs = append(jobs, job)
			return true
		})
		// Транзакция только на чтение: выносом займётся ближайший Lease
		for _, rec := range bad {
			q.logger.Error("Пропущено повреждённое задание",
				slog.String("key", string(rec.key)),
				slog.String("error", rec.err.Error()),
			)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	return jobs, nil
}

// fail применяет неуспешную попытку к заданию в состоянии running.
func (q *Queue) fail(txn *badger.Txn, job *Job, reason string, retryable bool) error {
	now := q.now()
	job.LastError = reason

	if retryable && job.Attempts < q.cfg.MaxAttempts {
		if err := job.transition(StateQueued, now); err != nil {
			return err
		}
		job.NotBefore = now.Add(q.retryDelay(job.Attempts))
		q.logger.Info("Задание будет повторено",
			slog.String("job_id", job.ID),
			slog.Int("attempts", job.Attempts),
			slog.Time("not_before", job.NotBefore),
			slog.String("error", reason),
		)
		return putJob(txn, activePrefix, job, 0)
	}

	if err := job.transition(StateFailed, now); err != nil {
		return err
	}
	q.logger.Error("Задание завершилось отказом",
		slog.String("job_id", job.ID),
		slog.String("file_id", job.FileID),
		slog.Int("attempts", job.Attempts),
		slog.Bool("retryable", retryable),
		slog.String("error", reason),
	)
	return moveJob(txn, job, failedPrefix, 0)
}

// ownedJob читает активное задание и проверяет, что аренда принадлежит вызывающему.
func (q *Queue) ownedJob(txn *badger.Txn, job *Job) (*Job, error) {
	stored, err := getJob(txn, activePrefix+job.ID)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLeaseLost, job.ID)
	}
	if err != nil {
		return nil, err
	}
	if stored.State != StateRunning || stored.LeaseOwner != job.LeaseOwner || stored.Attempts != job.Attempts {
		return nil, fmt.Errorf("%w: %s", ErrLeaseLost, job.ID)
	}
	return stored, nil
}

// retryDelay вычисляет задержку перед попыткой attempt+1.
// Экспонента растёт от RetryBaseDelay до RetryMaxDelay с джиттером.
func (q *Queue) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(q.cfg.RetryBaseDelay),
		backoff.WithMaxInterval(q.cfg.RetryMaxDelay),
		backoff.WithMaxElapsedTime(0),
	)
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// signal будит один простаивающий воркер, не блокируясь.
func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// --- Работа с ключами Badger ---

func putJob(txn *badger.Txn, prefix string, job *Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("ошибка сериализации задания: %w", err)
	}
	e := badger.NewEntry([]byte(prefix+job.ID), data)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return txn.SetEntry(e)
}

func moveJob(txn *badger.Txn, job *Job, prefix string, ttl time.Duration) error {
	if err := txn.Delete([]byte(activePrefix + job.ID)); err != nil {
		return err
	}
	return putJob(txn, prefix, job, ttl)
}

func getJob(txn *badger.Txn, key string) (*Job, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	var job Job
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &job)
	}); err != nil {
		return nil, fmt.Errorf("повреждённое задание %s: %w", key, err)
	}
	return &job, nil
}

// corruptRecord — запись очереди, которую не удалось разобрать.
type corruptRecord struct {
	key   []byte
	value []byte
	err   error
}

// scan обходит задания с префиксом в порядке ключей, пока fn возвращает true.
// Нечитаемые записи пропускаются и возвращаются вызывающему.
func scan(txn *badger.Txn, prefix string, fn func(*Job) bool) ([]corruptRecord, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var bad []corruptRecord
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return bad, fmt.Errorf("ошибка чтения задания %s: %w", item.Key(), err)
		}
		var job Job
		if err := json.Unmarshal(val, &job); err != nil {
			bad = append(bad, corruptRecord{key: item.KeyCopy(nil), value: val, err: err})
			continue
		}
		if !fn(&job) {
			break
		}
	}
	return bad, nil
}

// quarantine переносит нечитаемые записи под corrupt:, чтобы они
// не попадали в выдачу и не мешали остальным заданиям.
func (q *Queue) quarantine(txn *badger.Txn, bad []corruptRecord) error {
	for _, rec := range bad {
		q.logger.Error("Повреждённое задание вынесено из очереди",
			slog.String("key", string(rec.key)),
			slog.String("error", rec.err.Error()),
		)
		if err := txn.Set([]byte(corruptPrefix+string(rec.key)), rec.value); err != nil {
			return err
		}
		if err := txn.Delete(rec.key); err != nil {
			return err
		}
	}
	return nil
}
