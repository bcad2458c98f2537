package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore — хранилище сессий во встроенном Badger.
// Время жизни реализовано через TTL записей Badger.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStore создаёт хранилище поверх открытого Badger.
func NewBadgerStore(db *badger.DB, logger *slog.Logger) *BadgerStore {
	return &BadgerStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_badger")),
	}
}

func (s *BadgerStore) LookupUserID(_ context.Context, token string) (string, bool, error) {
	var userID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(Key(token)))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		userID = string(val)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return userID, userID != "", nil
}

func (s *BadgerStore) StoreToken(_ context.Context, token, userID string, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(Key(token)), []byte(userID))
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("ошибка записи сессии: %w", err)
	}
	s.logger.Debug("Сессия сохранена", slog.String("user_id", userID), slog.Duration("ttl", ttl))
	return nil
}

func (s *BadgerStore) Revoke(_ context.Context, token string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(Key(token)))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления сессии: %w", err)
	}
	return nil
}

func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger закрыт")
	}
	return nil
}

// CheckReady реализует handlers.ReadinessChecker.
func (s *BadgerStore) CheckReady() (status, message string) {
	if err := s.Ping(context.Background()); err != nil {
		return "fail", err.Error()
	}
	return "ok", "хранилище открыто"
}

var _ Store = (*BadgerStore)(nil)
