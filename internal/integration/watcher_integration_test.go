package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantscout/grantscout/internal/ingest"
	"github.com/grantscout/grantscout/internal/search"
)

// Corpus watcher integration tests - these exercise real fsnotify events
// against the debouncing watcher, including the full change -> re-ingest
// -> searchable loop.

// startWatcher watches path and returns the channel its coalesced
// operations arrive on.
func startWatcher(t *testing.T, path string, window time.Duration) <-chan ingest.Op {
	t.Helper()

	ops := make(chan ingest.Op, 8)
	w, err := ingest.NewCorpusWatcher(ingest.WatcherConfig{
		CorpusPath:     path,
		DebounceWindow: window,
		OnChange:       func(op ingest.Op) { ops <- op },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() { _ = w.Stop() })

	// Wait for the directory watch to register
	time.Sleep(200 * time.Millisecond)
	return ops
}

// waitOp blocks until a coalesced operation arrives or the deadline passes.
func waitOp(t *testing.T, ops <-chan ingest.Op, timeout time.Duration) ingest.Op {
	t.Helper()
	select {
	case op := <-ops:
		return op
	case <-time.After(timeout):
		t.Fatal("Timed out waiting for corpus change")
		return 0
	}
}

// writeCorpusFile writes a one-record corpus the watcher tests can mutate.
func writeCorpusFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(corpusLines()[0]+"\n"), 0644))
	return path
}

func TestCorpusWatcher_RewriteTriggersReingest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an ingested corpus being watched, with a change handler
	// that re-runs the ingest pipeline
	env := newSearchEnv(t, true)

	ops := make(chan ingest.Op, 8)
	w, err := ingest.NewCorpusWatcher(ingest.WatcherConfig{
		CorpusPath:     env.corpusPath,
		DebounceWindow: 150 * time.Millisecond,
		OnChange: func(op ingest.Op) {
			if op != ingest.OpDelete {
				_, runErr := env.runner.Run(context.Background(), ingest.RunnerConfig{
					CorpusPath:     env.corpusPath,
					DataDir:        env.dataDir,
					SkipEmbeddings: true,
				})
				assert.NoError(t, runErr)
			}
			ops <- op
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() { _ = w.Stop() })

	time.Sleep(200 * time.Millisecond)

	// When: an exporter rewrites the corpus with a new award appended
	extra := `{"id":"AWD-009","project_id":"PRJ-THETA","title":"Quantum Magnetometers for GPS Denied Navigation","abstract":"Nitrogen vacancy diamond magnetometers provide absolute heading estimates where satellite navigation is jammed.","terms":"quantum sensing\nmagnetometry","category":"devices","confidence":0.87,"org_name":"Northbay Photonics","org_type":"company","state":"WA","funding_usd":750000,"year":2023}`
	content := strings.Join(append(corpusLines(), extra), "\n") + "\n"
	require.NoError(t, os.WriteFile(env.corpusPath, []byte(content), 0644))

	// Then: the change is detected as a content modification
	op := waitOp(t, ops, 5*time.Second)
	assert.Equal(t, ingest.OpModify, op)

	// And: the new award is searchable once the handler returns
	eng := env.engine(t)
	resp, err := eng.Search(context.Background(), &search.SearchRequest{
		KeywordQuery: "quantum",
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, "AWD-009", resp.AllResults[0].ID)
}

func TestCorpusWatcher_BurstOfWrites_FiresOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watched corpus file
	path := writeCorpusFile(t)
	ops := startWatcher(t, path, 250*time.Millisecond)

	// When: an exporter rewrites it several times in quick succession
	for i := 0; i < 3; i++ {
		content := corpusLines()[0] + "\n" + corpusLines()[1] + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		time.Sleep(50 * time.Millisecond)
	}

	// Then: the burst coalesces into a single modification
	op := waitOp(t, ops, 5*time.Second)
	assert.Equal(t, ingest.OpModify, op)

	// And: no second flush follows once the file goes quiet
	select {
	case op := <-ops:
		t.Fatalf("Unexpected second flush: %v", op)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestCorpusWatcher_ReplaceByRename_ReportsChange(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watched corpus file
	path := writeCorpusFile(t)
	ops := startWatcher(t, path, 150*time.Millisecond)

	// When: the corpus is replaced atomically via a temp file rename,
	// the way exporters publish a consistent snapshot
	tmp := path + ".tmp"
	content := corpusLines()[0] + "\n" + corpusLines()[2] + "\n"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0644))
	require.NoError(t, os.Rename(tmp, path))

	// Then: the replacement surfaces as a content change, never as a
	// delete that would tear down the index
	op := waitOp(t, ops, 5*time.Second)
	assert.NotEqual(t, ingest.OpDelete, op)
}

func TestCorpusWatcher_CorpusRemoved_ReportsDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watched corpus file
	path := writeCorpusFile(t)
	ops := startWatcher(t, path, 150*time.Millisecond)

	// When: the corpus file is removed
	require.NoError(t, os.Remove(path))

	// Then: the watcher reports a delete
	op := waitOp(t, ops, 5*time.Second)
	assert.Equal(t, ingest.OpDelete, op)
}

func TestCorpusWatcher_SiblingFiles_DoNotFire(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watched corpus file
	path := writeCorpusFile(t)
	ops := startWatcher(t, path, 150*time.Millisecond)

	// When: an unrelated file churns in the same directory
	sibling := filepath.Join(filepath.Dir(path), "notes.txt")
	require.NoError(t, os.WriteFile(sibling, []byte("scratch"), 0644))
	require.NoError(t, os.Remove(sibling))

	// Then: the watcher stays quiet
	select {
	case op := <-ops:
		t.Fatalf("Unexpected flush for sibling file: %v", op)
	case <-time.After(500 * time.Millisecond):
	}
}
