//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client

// TestMain starts one SurrealDB container for the package.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("init schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestSaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeRuns(ctx))

	run := sampleRun()
	require.NoError(t, testDB.SaveRun(ctx, run))

	got, err := testDB.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.ContentHash, got.ContentHash)
	assert.Equal(t, run.Analysis, got.Analysis)
	assert.Equal(t, "Sparse Mixtures", got.Metadata.Title)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	// Upsert keeps one record per run id.
	run.Summary = "updated"
	require.NoError(t, testDB.SaveRun(ctx, run))
	runs, err := testDB.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "updated", runs[0].Summary)
}

func TestGetRunNotFound(t *testing.T) {
	_, err := testDB.GetRun(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsOrderAndCounts(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeRuns(ctx))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []models.Status{models.StatusCompleted, models.StatusFailed, models.StatusCompleted} {
		run := models.RunRecord{
			RunID:     fmt.Sprintf("run-%d", i),
			ContentID: "2401.0000" + fmt.Sprint(i),
			Status:    status,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, testDB.SaveRun(ctx, run))
	}

	runs, err := testDB.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "run-1", runs[1].RunID)

	counts, err := testDB.CountByStatus(ctx)
	require.NoError(t, err)
	byStatus := map[models.Status]int{}
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	assert.Equal(t, 2, byStatus[models.StatusCompleted])
	assert.Equal(t, 1, byStatus[models.StatusFailed])
}
