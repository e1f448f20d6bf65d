package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mindscape-ai/core/internal/runtime"
)

var (
	testMongoClient    *mongo.Client
	testMongoContainer testcontainers.Container
	skipMongoTests     bool
)

// setupMongoDB starts a disposable mongo:7 container the same way the
// runtime's tool-registry integration suite does; if Docker is not
// available in the environment the whole suite skips instead of failing.
func setupMongoDB(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
		Tmpfs:        map[string]string{"/data/db": "rw"},
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Logf("docker not available, skipping mongo store tests: %v", err)
		skipMongoTests = true
		return
	}
	testMongoContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		t.Logf("failed to get container host: %v", err)
		skipMongoTests = true
		return
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		t.Logf("failed to get container port: %v", err)
		skipMongoTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Logf("failed to connect to mongo: %v", err)
		skipMongoTests = true
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx, nil); err != nil {
		t.Logf("failed to ping mongo: %v", err)
		skipMongoTests = true
		return
	}
	testMongoClient = client
}

func openIntegrationStore(t *testing.T) *Store {
	t.Helper()
	if testMongoClient == nil && !skipMongoTests {
		setupMongoDB(t)
	}
	if skipMongoTests {
		t.Skip("docker not available, skipping mongo store integration test")
	}
	store, err := Open(context.Background(), Options{
		Client:     testMongoClient,
		Database:   "mindscape_test",
		Collection: t.Name(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testMongoClient.Database("mindscape_test").Collection(t.Name()).Drop(context.Background())
	})
	return store
}

func TestMongoStoreCreateGetRoundTrip(t *testing.T) {
	store := openIntegrationStore(t)
	ctx := context.Background()

	session := &runtime.ExecutionSession{
		ExecutionID:  "exec-1",
		WorkspaceID:  "ws-1",
		PlaybookCode: "onboarding.welcome",
		Status:       runtime.StateRunning,
	}
	require.NoError(t, store.Create(ctx, session))

	got, err := store.Get(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, session.WorkspaceID, got.WorkspaceID)
	require.Equal(t, session.PlaybookCode, got.PlaybookCode)
}

func TestMongoStoreUpdateRejectsTerminalSession(t *testing.T) {
	store := openIntegrationStore(t)
	ctx := context.Background()

	session := &runtime.ExecutionSession{
		ExecutionID: "exec-2",
		WorkspaceID: "ws-1",
		Status:      runtime.StateCompleted,
	}
	require.NoError(t, store.Create(ctx, session))

	err := store.Update(ctx, session)
	require.ErrorIs(t, err, runtime.ErrTerminal)
}

func TestMongoStoreListByWorkspaceFiltersByWorkspace(t *testing.T) {
	store := openIntegrationStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &runtime.ExecutionSession{ExecutionID: "exec-a", WorkspaceID: "ws-a", Status: runtime.StateRunning}))
	require.NoError(t, store.Create(ctx, &runtime.ExecutionSession{ExecutionID: "exec-b", WorkspaceID: "ws-b", Status: runtime.StateRunning}))

	sessions, err := store.ListByWorkspace(ctx, "ws-a")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "exec-a", sessions[0].ExecutionID)
}
