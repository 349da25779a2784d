//go:build integration

package ratelimit

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisStore_Integration_RoundTrip(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	testStoreRoundTrip(t, NewRedisStore(client, time.Minute))
}

// Two pacers over one Redis key behave like two runs on the same host.
func TestPacer_Integration_SharedWindow(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	ctx := context.Background()

	first := NewPacer(NewRedisStore(client, time.Minute), 300*time.Millisecond, logger)
	second := NewPacer(NewRedisStore(client, time.Minute), 300*time.Millisecond, logger)

	if err := first.Wait(ctx); err != nil {
		t.Fatalf("first.Wait() error = %v", err)
	}

	start := time.Now()
	if err := second.Wait(ctx); err != nil {
		t.Fatalf("second.Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("second pacer waited %v, want about 300ms", elapsed)
	}

	state, err := NewRedisStore(client, time.Minute).Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if state.Requests != 2 {
		t.Errorf("Requests = %d, want 2", state.Requests)
	}
}

func TestRedisStore_Integration_ConcurrentUpdates(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	testStoreConcurrentUpdates(t, NewRedisStore(client, time.Minute))
}

// Pacers in separate goroutines, each with its own redis store, still get
// distinct slots.
func TestPacer_Integration_ConcurrentWaits(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	interval := 300 * time.Millisecond

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := NewPacer(NewRedisStore(client, time.Minute), interval, logger)
			if err := p.Wait(context.Background()); err != nil {
				t.Errorf("Wait() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 2*interval-50*time.Millisecond {
		t.Errorf("three concurrent waits finished in %v, want at least %v", elapsed, 2*interval)
	}
}
