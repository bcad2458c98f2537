// Пакет kvstore — встроенное key-value хранилище на Badger.
// Общий экземпляр используется очередью заданий и сессиями;
// ключи разделяются префиксами.
package kvstore

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Open открывает хранилище в каталоге dir.
func Open(dir string, logger *slog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(newLogAdapter(logger)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия badger в %s: %w", dir, err)
	}

	logger.Info("Badger открыт", slog.String("dir", dir))
	return db, nil
}

// OpenInMemory открывает хранилище без записи на диск (тесты, разработка).
func OpenInMemory(logger *slog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(newLogAdapter(logger))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия badger в памяти: %w", err)
	}
	return db, nil
}

// CollectGarbage выполняет сборку мусора value log до тех пор,
// пока Badger находит что переписывать. Возвращает число циклов.
func CollectGarbage(db *badger.DB, discardRatio float64) (int, error) {
	if db.Opts().InMemory {
		return 0, nil
	}

	cycles := 0
	for {
		err := db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return cycles, nil
		}
		if err != nil {
			return cycles, fmt.Errorf("ошибка GC value log: %w", err)
		}
		cycles++
	}
}

// logAdapter направляет внутренние сообщения Badger в slog.
type logAdapter struct {
	logger *slog.Logger
}

func newLogAdapter(logger *slog.Logger) *logAdapter {
	return &logAdapter{logger: logger.With(slog.String("component", "badger"))}
}

func (a *logAdapter) Errorf(format string, args ...any) {
	a.logger.Error(trim(format, args))
}

func (a *logAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(trim(format, args))
}

// Infof понижен до Debug: Badger слишком разговорчив на Info.
func (a *logAdapter) Infof(format string, args ...any) {
	a.logger.Debug(trim(format, args))
}

func (a *logAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(trim(format, args))
}

func trim(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
