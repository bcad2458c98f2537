package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики конвейера миниатюр
var (
	// jobsTotal — завершённые попытки по результату (succeeded, retried, failed).
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_thumbnail_jobs_total",
		Help: "Общее количество обработанных заданий по результату",
	}, []string{"result"})

	// jobDurationSeconds — длительность обработки одного задания.
	jobDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fm_thumbnail_job_duration_seconds",
		Help:    "Длительность обработки задания в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	// derivativesTotal — записанные миниатюры по ширине.
	derivativesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_thumbnail_derivatives_total",
		Help: "Общее количество записанных миниатюр",
	}, []string{"width"})

	// reaperRunsTotal — количество запусков возврата просроченных аренд.
	reaperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_thumbnail_reaper_runs_total",
		Help: "Общее количество запусков reaper",
	})

	// reaperRequeuedTotal — задания, возвращённые в очередь после истечения аренды.
	reaperRequeuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_thumbnail_reaper_requeued_total",
		Help: "Общее количество заданий с истёкшей арендой, возвращённых в очередь",
	})

	// queuePending — задания в очереди по состоянию (queued, running).
	queuePending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fm_thumbnail_queue_pending",
		Help: "Количество незавершённых заданий по состоянию",
	}, []string{"state"})
)
