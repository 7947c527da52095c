//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
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

func TestTracker_Integration_SharedBlock(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	// Two processes using the same application credentials.
	first := NewTracker(redisClient, "client-id", testLogger())
	second := NewTracker(redisClient, "client-id", testLogger())
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("Retry-After", "1")
	if _, err := first.RecordRetryAfter(ctx, headers); err != nil {
		t.Fatalf("RecordRetryAfter() error = %v", err)
	}

	state, err := second.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.IsBlocked() {
		t.Fatal("Second tracker should see the block")
	}

	start := time.Now()
	if err := second.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("Wait() returned after %v, want to honour the shared interval", elapsed)
	}
}

func TestTracker_Integration_Throttling(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, "client-id", testLogger())
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("Retry-After", "0")
	for i := 0; i < ThrottleThreshold; i++ {
		if _, err := tracker.RecordRetryAfter(ctx, headers); err != nil {
			t.Fatalf("RecordRetryAfter() error = %v", err)
		}
	}

	// Let the zero-length interval pass.
	time.Sleep(10 * time.Millisecond)

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.NeedsThrottling() {
		t.Fatalf("NeedsThrottling() = false after %d 429s: %+v", ThrottleThreshold, state)
	}

	start := time.Now()
	if err := tracker.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < ThrottleDelay-50*time.Millisecond {
		t.Errorf("Wait() took %v, want about %v", elapsed, ThrottleDelay)
	}
}

func TestTracker_Integration_ConcurrentRecords(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, "client-id", testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(secs int) {
			defer wg.Done()
			headers := http.Header{}
			headers.Set("Retry-After", strconv.Itoa(secs))
			if _, err := tracker.RecordRetryAfter(ctx, headers); err != nil {
				t.Errorf("RecordRetryAfter() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Recent429s != 10 {
		t.Errorf("Recent429s = %d, want 10", state.Recent429s)
	}
	if d := state.TimeUntilUnblocked(); d < 9*time.Second {
		t.Errorf("TimeUntilUnblocked() = %v, want the longest interval (~10s)", d)
	}
}
