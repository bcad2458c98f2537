// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// files-manager мониторит PostgreSQL через существующий pgxpool
// (connection pool mode, critical). При metadata_backend=memory
// сервис не создаётся.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/goartstore/files-manager/internal/config"
)

// pgDependency — имя зависимости в метриках topologymetrics.
const pgDependency = "postgresql"

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	target string
	logger *slog.Logger
}

// NewDephealthService создаёт мониторинг PostgreSQL метаданных.
// Имя сервиса, группа и интервал берутся из FM_SERVICE_ID,
// FM_DEPHEALTH_GROUP и FM_DEPHEALTH_CHECK_INTERVAL; db — адаптер
// pgxpool из stdlib.OpenDBFromPool. Метрики регистрируются
// в глобальном Prometheus registry.
func NewDephealthService(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger)
}

// NewDephealthServiceWithRegisterer — то же с отдельным registerer (для тестов).
func NewDephealthServiceWithRegisterer(
	cfg *config.Config,
	db *sql.DB,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	cfg *config.Config,
	db *sql.DB,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	if db == nil {
		return nil, errors.New("dephealth: нет подключения к PostgreSQL")
	}

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// Без PostgreSQL сервис не выдаёт ни записи, ни содержимое
		dephealth.AddDependency(pgDependency, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(cfg.DatabaseURL()),
			dephealth.CheckInterval(cfg.DephealthCheckInterval),
			dephealth.Critical(true),
		),
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.DephealthGroup, opts...)
	if err != nil {
		return nil, fmt.Errorf("dephealth: %w", err)
	}

	return &DephealthService{
		dh:     dh,
		target: fmt.Sprintf("%s/%s", net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)), cfg.DBName),
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку PostgreSQL.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг метаданных запущен",
		slog.String("dependency", pgDependency),
		slog.String("target", ds.target),
	)
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг метаданных остановлен")
}
