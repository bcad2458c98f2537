// Точка входа files-manager — сервис файлов пользователей с асинхронным
// построением миниатюр. Загружает конфигурацию, поднимает хранилище
// метаданных (PostgreSQL или память), хранилище сессий (Redis или Badger),
// очередь заданий и воркеры миниатюр, HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/files-manager/internal/access"
	"github.com/bigkaa/goartstore/files-manager/internal/api/handlers"
	"github.com/bigkaa/goartstore/files-manager/internal/api/openapi"
	"github.com/bigkaa/goartstore/files-manager/internal/config"
	"github.com/bigkaa/goartstore/files-manager/internal/database"
	"github.com/bigkaa/goartstore/files-manager/internal/pipeline"
	"github.com/bigkaa/goartstore/files-manager/internal/queue"
	"github.com/bigkaa/goartstore/files-manager/internal/repository"
	"github.com/bigkaa/goartstore/files-manager/internal/server"
	"github.com/bigkaa/goartstore/files-manager/internal/service"
	"github.com/bigkaa/goartstore/files-manager/internal/session"
	"github.com/bigkaa/goartstore/files-manager/internal/storage/contentstore"
	"github.com/bigkaa/goartstore/files-manager/internal/storage/kvstore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("files-manager запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("metadata_backend", cfg.MetadataBackend),
		slog.String("session_backend", cfg.SessionBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Встроенный OpenAPI-контракт: проверка документа и валидатор запросов
	contract, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Некорректный OpenAPI-контракт", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validateRequests, err := openapi.Validator(contract, handlers.UploadBodyLimit(cfg.MaxFileSize))
	if err != nil {
		logger.Error("Ошибка построения валидатора запросов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Хранилище метаданных
	meta, err := openMetadata(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища метаданных", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer meta.close()

	repo := meta.repo
	if cfg.CacheSize > 0 {
		repo = repository.NewCachedRepository(repo, cfg.CacheSize, cfg.CacheTTL)
		logger.Info("Кэш записей включён",
			slog.Int("size", cfg.CacheSize),
			slog.String("ttl", cfg.CacheTTL.String()),
		)
	}

	// 5. Встроенный Badger: очередь заданий и (опционально) сессии
	kv, err := kvstore.Open(cfg.BadgerDir, logger)
	if err != nil {
		logger.Error("Ошибка открытия Badger", slog.String("dir", cfg.BadgerDir), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer kv.Close()

	// 6. Хранилище сессий
	sessions, sessionChecker, closeSessions := openSessions(cfg, kv, logger)
	defer closeSessions()
	accessControl := access.New(sessions)

	// 7. Хранилище содержимого
	blobs := contentstore.New(cfg.FolderPath)

	// 8. Очередь и конвейер миниатюр
	jobs := queue.New(kv, queue.Config{
		MaxAttempts:    cfg.MaxAttempts,
		LeaseDuration:  cfg.LeaseDuration,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}, logger)
	thumbnails := pipeline.New(jobs, repo, blobs, pipeline.Config{
		Workers:        cfg.Workers,
		JobTimeout:     cfg.JobTimeout,
		PollInterval:   cfg.PollInterval,
		MaxImagePixels: cfg.MaxImagePixels,
	}, logger)
	reaper := pipeline.NewReaper(jobs, kv, cfg.ReaperInterval, logger)

	// 9. Сервис файлов и HTTP handlers
	files := service.NewFileService(repo, blobs, thumbnails, logger,
		service.WithMaxFileSize(cfg.MaxFileSize),
	)
	apiHandler := handlers.NewAPIHandler(files,
		handlers.NewHealthHandler(meta.checker, sessionChecker),
		handlers.NewStatusHandler(files, meta.checker, sessionChecker, logger),
		logger,
	)

	// 10. Запуск фоновых задач
	thumbnails.Start(ctx)
	reaper.Start(ctx)

	// 10.1 topologymetrics — только для PostgreSQL
	var dephealthSvc *service.DephealthService
	if meta.pgDB != nil {
		svc, dhErr := service.NewDephealthService(cfg, meta.pgDB, logger)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := svc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			dephealthSvc = svc
		}
	}

	// 11. HTTP-сервер (блокируется до сигнала завершения)
	srv := server.New(cfg, logger, apiHandler, accessControl, validateRequests)
	runErr := srv.Run(ctx)
	stop()

	// 12. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	thumbnails.Stop()
	reaper.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("files-manager остановлен")
}

// metadataStore — выбранный бэкенд метаданных и его ресурсы.
type metadataStore struct {
	repo    repository.FileRepository
	checker handlers.ReadinessChecker
	// pgDB — адаптер пула для topologymetrics, nil для memory
	pgDB  *sql.DB
	close func()
}

func openMetadata(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*metadataStore, error) {
	if cfg.MetadataBackend == "memory" {
		repo := repository.NewMemoryRepository(logger)
		logger.Warn("Метаданные хранятся в памяти и теряются при перезапуске")
		return &metadataStore{repo: repo, checker: repo, close: func() {}}, nil
	}

	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Адаптер pgxpool → *sql.DB: проверка здоровья идёт через
	// существующий пул соединений
	pgDB := stdlib.OpenDBFromPool(pool)

	return &metadataStore{
		repo:    repository.NewFileRepository(pool),
		checker: database.NewReadinessChecker(pool),
		pgDB:    pgDB,
		close: func() {
			_ = pgDB.Close()
			pool.Close()
		},
	}, nil
}

// openSessions выбирает хранилище сессий. Возвращает хранилище,
// его проверку готовности и функцию освобождения ресурсов.
func openSessions(cfg *config.Config, kv *badger.DB, logger *slog.Logger) (session.Store, handlers.ReadinessChecker, func()) {
	if cfg.SessionBackend == "badger" {
		store := session.NewBadgerStore(kv, logger)
		return store, store, func() {}
	}

	client := session.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	store := session.NewRedisStore(client, logger)
	return store, store, func() { _ = client.Close() }
}
