package mongo

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// setupTestDB starts a single-node replica set (change streams need one) and
// returns a client bound to a fresh database.
func setupTestDB(t *testing.T) (*Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err, "failed to start mongo container")

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get connection string")

	connectCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	dbName := "test_" + strings.ToLower(strings.ReplaceAll(t.Name(), "/", "_"))
	if len(dbName) > 60 {
		dbName = dbName[:60]
	}

	client, err := Connect(connectCtx, directURI(t, uri), dbName, DefaultNames())
	require.NoError(t, err, "failed to connect")
	require.NoError(t, client.EnsureIndexes(ctx))

	cleanup := func() {
		_ = client.Close(context.Background())
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return client, cleanup
}

// directURI forces a direct connection so the driver does not try to reach
// the replica set member by its in-container hostname.
func directURI(t *testing.T, uri string) string {
	t.Helper()
	u, err := url.Parse(uri)
	require.NoError(t, err)
	q := u.Query()
	q.Set("directConnection", "true")
	u.RawQuery = q.Encode()
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
