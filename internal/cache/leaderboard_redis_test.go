//go:build testutil
// +build testutil

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Spok95/ecoreport-bot/internal/models"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestLeaderboard_Redis(t *testing.T) {
	ctx := context.Background()
	rdb, err := Connect(ctx, startRedis(t))
	require.NoError(t, err)
	defer rdb.Close()

	c := NewLeaderboard(rdb, time.Minute, nil)
	_, ok := c.Get(ctx)
	assert.False(t, ok)

	rows := []models.LeaderboardRow{{ClassName: "8В", SchoolName: "Школа №5", Total: 52}}
	c.Set(ctx, rows)
	got, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, rows, got)

	c.Invalidate(ctx)
	_, ok = c.Get(ctx)
	assert.False(t, ok)
}
