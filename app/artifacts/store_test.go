package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRunDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestStore_Collect(t *testing.T) {
	runDir := makeRunDir(t, map[string]string{
		"listings-3-abc123.json": `[{"profile_link":"l"}]`,
		"debug_1.html":           "<html/>",
		"debug_2.png":            "png-bytes",
		"error_1.png":            "png-bytes",
		"workflow.log":           "line",
	})

	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	manifests, err := store.Collect(runDir, "abc123", false)
	require.NoError(t, err)
	require.Len(t, manifests, 2, "errors bundle skipped for successful run")

	assert.Equal(t, "results", manifests[0].Bundle)
	require.Len(t, manifests[0].Files, 1)
	assert.Equal(t, "listings-3-abc123.json", manifests[0].Files[0].Name)
	assert.Positive(t, manifests[0].Files[0].Size)

	assert.Equal(t, "debug", manifests[1].Bundle)
	assert.Len(t, manifests[1].Files, 2)

	// retention periods differ per bundle
	resultsTTL := manifests[0].ExpiresAt.Sub(manifests[0].CreatedAt)
	debugTTL := manifests[1].ExpiresAt.Sub(manifests[1].CreatedAt)
	assert.InDelta(t, 30*24, resultsTTL.Hours(), 25, "results kept ~30 days")
	assert.InDelta(t, 7*24, debugTTL.Hours(), 25, "debug kept ~7 days")

	// files physically copied with manifest alongside
	assert.FileExists(t, filepath.Join(store.Location, "abc123", "results", "listings-3-abc123.json"))
	assert.FileExists(t, filepath.Join(store.Location, "abc123", "results", "manifest.yml"))
	assert.FileExists(t, filepath.Join(store.Location, "abc123", "debug", "debug_1.html"))
}

func TestStore_CollectFailedRun(t *testing.T) {
	runDir := makeRunDir(t, map[string]string{
		"error_1.png":  "png-bytes",
		"error_2.html": "<html/>",
		"workflow.log": "line",
	})

	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	manifests, err := store.Collect(runDir, "abc123", true)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "errors", manifests[0].Bundle)
	assert.Len(t, manifests[0].Files, 3)
}

func TestStore_CollectNothingMatched(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	// empty run dir: results bundle warns, others silent, no error either way
	manifests, err := store.Collect(t.TempDir(), "abc123", true)
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestStore_List(t *testing.T) {
	runDir := makeRunDir(t, map[string]string{"out.json": "[]", "debug_1.html": "<html/>"})
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Collect(runDir, "abc123", false)
	require.NoError(t, err)

	manifests, err := store.List("abc123")
	require.NoError(t, err)
	require.Len(t, manifests, 2)

	manifests, err = store.List("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestStore_FilePath(t *testing.T) {
	runDir := makeRunDir(t, map[string]string{"out.json": "[]"})
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = store.Collect(runDir, "abc123", false)
	require.NoError(t, err)

	path, err := store.FilePath("abc123", "results", "out.json")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = store.FilePath("abc123", "results", "../../../etc/passwd")
	assert.Error(t, err)
	_, err = store.FilePath("abc123", "results", "missing.json")
	assert.Error(t, err)
	_, err = store.FilePath("", "results", "out.json")
	assert.Error(t, err)
}

func TestStore_Cleanup(t *testing.T) {
	store, err := NewStore(t.TempDir(), []Bundle{
		{Name: "results", Globs: []string{"*.json"}, RetentionDays: 30, OnMissing: MissingWarn},
		{Name: "debug", Globs: []string{"debug_*.html"}, RetentionDays: 7, OnMissing: MissingIgnore},
	})
	require.NoError(t, err)

	runDir := makeRunDir(t, map[string]string{"out.json": "[]", "debug_1.html": "<html/>"})
	_, err = store.Collect(runDir, "abc123", false)
	require.NoError(t, err)

	// 10 days in: debug expired, results still kept
	require.NoError(t, store.Cleanup(time.Now().AddDate(0, 0, 10)))
	assert.NoDirExists(t, filepath.Join(store.Location, "abc123", "debug"))
	assert.FileExists(t, filepath.Join(store.Location, "abc123", "results", "out.json"))

	// 40 days in: everything expired, run dir removed too
	require.NoError(t, store.Cleanup(time.Now().AddDate(0, 0, 40)))
	assert.NoDirExists(t, filepath.Join(store.Location, "abc123"))
}

func TestDefaultBundles(t *testing.T) {
	bundles := DefaultBundles()
	require.Len(t, bundles, 3)

	assert.Equal(t, "results", bundles[0].Name)
	assert.Equal(t, 30, bundles[0].RetentionDays)
	assert.Equal(t, MissingWarn, bundles[0].OnMissing)
	assert.False(t, bundles[0].FailureOnly)

	assert.Equal(t, "debug", bundles[1].Name)
	assert.Equal(t, 7, bundles[1].RetentionDays)
	assert.Equal(t, MissingIgnore, bundles[1].OnMissing)

	assert.Equal(t, "errors", bundles[2].Name)
	assert.Equal(t, 30, bundles[2].RetentionDays)
	assert.True(t, bundles[2].FailureOnly)
	assert.Contains(t, bundles[2].Globs, "workflow.log")
}
