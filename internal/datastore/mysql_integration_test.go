//go:build integration

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/qubitrhythm/disensor/internal/conf"
)

func TestMySQLStoreIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("disensor"),
		mysql.WithUsername("disensor"),
		mysql.WithPassword("disensor"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Backend.Type = conf.BackendMySQL
	settings.Backend.MySQL.Host = host
	settings.Backend.MySQL.Port = port.Port()
	settings.Backend.MySQL.Database = "disensor"
	settings.Backend.MySQL.Username = "disensor"
	settings.Backend.MySQL.Password = "disensor"

	store, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	seed(t, store)

	counts, err := store.GetReadingCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 1, "B": 3, "C": 1}, counts)

	total, err := store.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}
