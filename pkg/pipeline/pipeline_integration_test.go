//go:build integration

package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/wdi-report/internal/testutil"
	"github.com/Sternrassler/wdi-report/pkg/dataset"
	"github.com/Sternrassler/wdi-report/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())

	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})
	return client
}

// Consecutive runs sharing redis pacing state keep their requests apart.
func TestRun_Integration_SharedPacer(t *testing.T) {
	rdb := setupRedis(t)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPages(indicatorPath, [][]dataset.Observation{
		testutil.IncomeGroupObservations(2000, 2011),
		testutil.IncomeGroupObservations(2012, 2022),
	})

	pause := 400 * time.Millisecond
	newConfig := func() Config {
		cfg := testConfig(t, mock)
		cfg.Pause = pause
		cfg.PacerStore = ratelimit.NewRedisStore(rdb, time.Minute)
		return cfg
	}

	start := time.Now()
	first, err := Run(context.Background(), newConfig())
	require.NoError(t, err)
	second, err := Run(context.Background(), newConfig())
	require.NoError(t, err)
	elapsed := time.Since(start)

	// Four requests, three gaps.
	assert.GreaterOrEqual(t, elapsed, 3*pause-50*time.Millisecond)
	assert.Equal(t, 4, mock.GetRequestCount())
	assert.Equal(t, first.Years, second.Years)

	state, err := ratelimit.NewRedisStore(rdb, time.Minute).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, state.Requests)
	assert.FileExists(t, filepath.Clean(second.ReportPath))
}
