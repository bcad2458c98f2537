package service

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/files-manager/internal/config"
)

func dephealthConfig() *config.Config {
	return &config.Config{
		ServiceID:              "files-manager",
		DephealthGroup:         "files",
		DephealthCheckInterval: 15 * time.Second,
		DBHost:                 "localhost",
		DBPort:                 5432,
		DBName:                 "files_manager",
		DBUser:                 "fm",
		DBPassword:             "p@ss:w/rd",
		DBSSLMode:              "disable",
	}
}

// TestNewDephealthService проверяет создание сервиса без подключения к БД:
// sql.Open не устанавливает соединение до первой проверки.
// Пароль со спецсимволами не должен ломать разбор URL.
func TestNewDephealthService(t *testing.T) {
	cfg := dephealthConfig()
	db, err := sql.Open("pgx", cfg.DatabaseURL())
	require.NoError(t, err)
	defer db.Close()

	svc, err := NewDephealthServiceWithRegisterer(cfg, db, testLogger(), prometheus.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Equal(t, "localhost:5432/files_manager", svc.target)
}

func TestNewDephealthService_NoDB(t *testing.T) {
	_, err := NewDephealthServiceWithRegisterer(dephealthConfig(), nil, testLogger(), prometheus.NewRegistry())
	assert.Error(t, err)
}
