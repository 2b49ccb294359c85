package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"
)

func startValkey(t *testing.T) valkey.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "valkey/valkey:8-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{endpoint}})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestRelay_DeliversAcrossValkey(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := startValkey(t)
	logger := zap.NewNop()

	hub := NewHub(logger)
	relay := NewRelay(client, hub, logger)
	broadcaster := NewValkeyBroadcaster(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	projectID := uuid.New()
	sub := hub.Subscribe(projectID, uuid.New())

	// PSUBSCRIBE is asynchronous, keep publishing until the first delivery
	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var got int64
	for got == 0 {
		select {
		case entry := <-sub.Events():
			got = entry.ID
		case <-ticker.C:
			require.NoError(t, broadcaster.Publish(context.Background(), entryFor(projectID, 42)))
		case <-deadline:
			t.Fatal("activity was not relayed")
		}
	}
	assert.Equal(t, int64(42), got)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
}
