package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_record_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_record_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных.",
	})
)

// CachedRepository — декоратор FileRepository с LRU-кэшем FindByID.
// Кэш per-instance; SetVisibility обновляет закэшированную запись,
// поэтому чтения в этом процессе не видят устаревший флаг.
type CachedRepository struct {
	next  FileRepository
	cache *expirable.LRU[string, model.FileRecord]
}

// NewCachedRepository оборачивает next LRU-кэшем размера maxSize с TTL записей ttl.
func NewCachedRepository(next FileRepository, maxSize int, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		next:  next,
		cache: expirable.NewLRU[string, model.FileRecord](maxSize, nil, ttl),
	}
}

func (c *CachedRepository) Insert(ctx context.Context, rec *model.FileRecord) (string, error) {
	id, err := c.next.Insert(ctx, rec)
	if err != nil {
		return "", err
	}
	c.cache.Add(id, *rec)
	return id, nil
}

func (c *CachedRepository) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if rec, ok := c.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return &rec, nil
	}
	cacheMissesTotal.Inc()

	rec, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *rec)
	return rec, nil
}

// FindByOwnerAndParent не кэшируется: страницы меняются при каждой вставке.
func (c *CachedRepository) FindByOwnerAndParent(ctx context.Context, ownerID, parentID string, page, pageSize int) ([]*model.FileRecord, error) {
	return c.next.FindByOwnerAndParent(ctx, ownerID, parentID, page, pageSize)
}

func (c *CachedRepository) SetVisibility(ctx context.Context, id string, isPublic bool) (*model.FileRecord, error) {
	rec, err := c.next.SetVisibility(ctx, id, isPublic)
	if err != nil {
		c.cache.Remove(id)
		return nil, err
	}
	c.cache.Add(id, *rec)
	return rec, nil
}

func (c *CachedRepository) Count(ctx context.Context) (int, error) {
	return c.next.Count(ctx)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ FileRepository = (*CachedRepository)(nil)
