package database

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hai-surveillance-server/internal/domain"
)

func TestDatabaseConnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        "testpass",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := NewConnection(ctx, config, logger)
	require.NoError(t, err, "failed to create database connection")
	defer db.Close()

	assert.NoError(t, db.Health(ctx))
	assert.NotNil(t, db.Stats())
}
