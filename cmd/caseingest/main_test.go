package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/ingestion"
	"github.com/poiesic/caseingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

var credentialVars = []string{
	"COURTLISTENER_API_TOKEN",
	"AZURE_SEARCH_ENDPOINT",
	"AZURE_SEARCH_API_KEY",
	"AZURE_OPENAI_ENDPOINT",
	"AZURE_OPENAI_API_KEY",
}

// testApp returns the application with output captured and exit handling disabled.
func testApp(out io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var coder cli.ExitCoder
	require.True(t, errors.As(err, &coder), "expected exit error, got %v", err)
	return coder.ExitCode()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caseingest.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestIngestCommandFlags(t *testing.T) {
	t.Run("court is required", func(t *testing.T) {
		err := testApp(io.Discard).Run([]string{"caseingest", "ingest", "--date", "2024-01-01"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "court")
	})

	t.Run("date is required", func(t *testing.T) {
		err := testApp(io.Discard).Run([]string{"caseingest", "ingest", "--court", "ca9"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "date")
	})

	t.Run("max-cases defaults to 100", func(t *testing.T) {
		app := newApp()
		var maxCases *cli.IntFlag
		for _, flag := range app.Command("ingest").Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "max-cases" {
				maxCases = f
			}
		}
		require.NotNil(t, maxCases)
		assert.Equal(t, 100, maxCases.Value)
	})

	t.Run("invalid date format", func(t *testing.T) {
		err := testApp(io.Discard).Run([]string{"caseingest", "ingest", "--court", "ca9", "--date", "2024/01/01"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "YYYY-MM-DD")
		assert.Equal(t, exitFailure, exitCode(t, err))
	})
}

func TestIngestCommand_MissingCredentials(t *testing.T) {
	for _, name := range credentialVars {
		t.Setenv(name, "")
	}

	err := testApp(io.Discard).Run([]string{"caseingest", "ingest", "--court", "ca9", "--date", "2024-01-01"})
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(t, err))
	for _, name := range credentialVars {
		assert.Contains(t, err.Error(), name)
	}
}

func TestIngestCommand_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "[chunking]\nwindow_size = 0\n")

	err := testApp(io.Discard).Run([]string{"caseingest", "--config", path, "ingest", "--court", "ca9", "--date", "2024-01-01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_size")
}

func TestSetupIndexCommand_MissingCredentials(t *testing.T) {
	for _, name := range credentialVars {
		t.Setenv(name, "")
	}
	t.Setenv("COURTLISTENER_API_TOKEN", "token")

	err := testApp(io.Discard).Run([]string{"caseingest", "setup-index"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "COURTLISTENER_API_TOKEN")
	assert.Contains(t, err.Error(), "AZURE_SEARCH_ENDPOINT")
}

func TestRunsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db")
	path := writeConfig(t, fmt.Sprintf("[storage]\npath = %q\n", dbPath))

	backend, err := badger.OpenBackend(dbPath, false, nil)
	require.NoError(t, err)
	repo := badger.NewRunRepository(backend)
	for i, court := range []string{"ca9", "scotus"} {
		require.NoError(t, repo.SaveRun(context.Background(), &core.RunReport{
			RunID:      core.RunID("run-" + court),
			Court:      court,
			StartedAt:  time.Date(2024, 3, 1+i, 12, 0, 0, 0, time.UTC),
			TotalCases: 3,
			Uploaded:   9,
		}))
	}
	require.NoError(t, backend.Close())

	t.Run("lists newest first", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, testApp(&out).Run([]string{"caseingest", "--config", path, "runs"}))

		text := out.String()
		require.Contains(t, text, "run-ca9")
		require.Contains(t, text, "run-scotus")
		assert.Less(t, bytes.Index(out.Bytes(), []byte("run-scotus")), bytes.Index(out.Bytes(), []byte("run-ca9")))
	})

	t.Run("limit", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, testApp(&out).Run([]string{"caseingest", "--config", path, "runs", "--limit", "1"}))
		assert.Contains(t, out.String(), "run-scotus")
		assert.NotContains(t, out.String(), "run-ca9")
	})
}

func TestRunsCommand_Empty(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("[storage]\npath = %q\n", filepath.Join(t.TempDir(), "db")))

	var out bytes.Buffer
	require.NoError(t, testApp(&out).Run([]string{"caseingest", "--config", path, "runs"}))
	assert.Contains(t, out.String(), "No runs recorded")
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	for _, bad := range []string{"", "2024-13-01", "01/02/2024", "2024-02-30"} {
		_, err := parseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestExitStatus(t *testing.T) {
	report := &core.RunReport{}
	testCases := []struct {
		name     string
		report   *core.RunReport
		err      error
		expected int
	}{
		{"report", report, nil, 0},
		{"report with failures", &core.RunReport{FailedUpload: 3}, nil, 0},
		{"fetch failure", nil, &ingestion.FetchError{Court: "ca9", Err: ingestion.ErrNoOpinions}, exitFailure},
		{"interrupted", nil, fmt.Errorf("%w: %w", ingestion.ErrInterrupted, context.Canceled), exitInterrupted},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, exitStatus(tc.report, tc.err))
		})
	}
}

func TestSetupIndexExit(t *testing.T) {
	err := setupIndexExit(context.Background(), errors.New("service unavailable"))
	assert.Equal(t, exitFailure, exitCode(t, err))
	assert.Contains(t, err.Error(), "service unavailable")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = setupIndexExit(ctx, fmt.Errorf("creating index: %w", context.Canceled))
	assert.Equal(t, exitInterrupted, exitCode(t, err))
}

func TestProgressPrinter(t *testing.T) {
	var out bytes.Buffer
	p := newProgressPrinter(&out)

	p.Emit(ingestion.Event{Stage: ingestion.StageFetch, Kind: ingestion.EventStageStarted})
	p.Emit(ingestion.Event{Stage: ingestion.StageFetch, Kind: ingestion.EventStageCompleted, Count: 2})
	p.Emit(ingestion.Event{Stage: ingestion.StageChunk, Kind: ingestion.EventStageStarted, Items: 2})
	p.Emit(ingestion.Event{Stage: ingestion.StageChunk, Kind: ingestion.EventDocumentChunked, CaseName: "Roe v. Wade", Item: 1, Items: 2, Count: 4})
	p.Emit(ingestion.Event{Stage: ingestion.StageChunk, Kind: ingestion.EventDocumentFailed, CaseID: "bad id", Item: 2, Items: 2, Err: core.ErrUnsafeID})
	p.Emit(ingestion.Event{Stage: ingestion.StageChunk, Kind: ingestion.EventStageCompleted, Count: 4, Failed: 1})
	p.Emit(ingestion.Event{Stage: ingestion.StageSkipUpload, Kind: ingestion.EventStageStarted})
	p.Emit(ingestion.Event{Stage: ingestion.StageReport, Kind: ingestion.EventRunFinished, Report: &core.RunReport{
		RunID:            "abc",
		Court:            "ca9",
		TotalCases:       2,
		TotalChunks:      4,
		FailedProcessing: 1,
		DryRun:           true,
		Failures:         []core.ProcessingFailure{{CaseID: "bad id", Reason: "unsafe"}},
	}})

	text := out.String()
	assert.Contains(t, text, "[1/4] Fetching cases")
	assert.Contains(t, text, "Fetched 2 opinions")
	assert.Contains(t, text, "Roe v. Wade")
	assert.Contains(t, text, "error processing opinion bad id")
	assert.Contains(t, text, "Failed to process 1 opinions")
	assert.Contains(t, text, "Skipping upload")
	assert.Contains(t, text, "Total Chunks:        4")
	assert.Contains(t, text, "  - bad id: unsafe")
	assert.NotContains(t, text, "Success Rate")
}

func TestSetupLogger(t *testing.T) {
	testCases := []struct {
		input string
		valid bool
	}{
		{"debug", true},
		{"INFO", true},
		{"WaRn", true},
		{"error", true},
		{"invalid", false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			app := &cli.App{
				Name: "test",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "log-level",
						Value: "info",
					},
				},
				Before: setupLogger,
				Action: func(c *cli.Context) error {
					return nil
				},
			}

			err := app.Run([]string{"test", "--log-level", tc.input})
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid log level")
		})
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
