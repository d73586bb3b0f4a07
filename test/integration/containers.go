//go:build integration

// Package integration starts the backing services used by the integration
// tests of the store and relay packages.
package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	pgstore "github.com/dmehra2102/shop-assistant/internal/storage/postgres"
)

// Postgres starts a migrated database and returns its URL.
func Postgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("shop"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgC.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres: %s", err)
		}
	})

	url, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, pgstore.Migrate(url))
	return url
}

// Mongo starts a single-node replica set, which transactions require.
func Mongo(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	mongoC, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoC.Terminate(ctx); err != nil {
			t.Logf("failed to terminate mongo: %s", err)
		}
	})

	uri, err := mongoC.ConnectionString(ctx)
	require.NoError(t, err)
	// The replica set advertises the container hostname; talk to the
	// mapped port directly instead.
	if strings.Contains(uri, "?") {
		return uri + "&directConnection=true"
	}
	return strings.TrimSuffix(uri, "/") + "/?directConnection=true"
}

func Kafka(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("shop-assistant-test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaC.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka: %s", err)
		}
	})

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	return brokers
}
