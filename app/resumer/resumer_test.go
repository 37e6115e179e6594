package resumer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/scrapn/app/batch"
)

func testSpec(uuid string) batch.Spec {
	return batch.Spec{
		ParentURL:   "https://example.com/list",
		BatchNumber: "3",
		Links:       []string{"https://example.com/p/1"},
		CSVFilename: "listings.csv",
		RunUUID:     uuid,
	}
}

func TestResumer_OnStart(t *testing.T) {
	r := New(t.TempDir(), true)

	s, err := r.OnStart(testSpec("abc123"))
	require.NoError(t, err)
	assert.Equal(t, "abc123-3.scrapn", filepath.Base(s))

	data, err := os.ReadFile(s) // nolint gosec
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_uuid":"abc123"`)
}

func TestResumer_OnStartDisabled(t *testing.T) {
	r := New(t.TempDir(), false)
	s, err := r.OnStart(testSpec("abc123"))
	require.NoError(t, err)
	assert.Empty(t, s)
	assert.NoError(t, r.OnFinish(s))
}

func TestResumer_OnFinish(t *testing.T) {
	r := New(t.TempDir(), true)

	s, err := r.OnStart(testSpec("abc123"))
	require.NoError(t, err)
	require.NoError(t, r.OnFinish(s))

	_, err = os.ReadFile(s) // nolint gosec
	assert.Error(t, err)
}

func TestResumer_List(t *testing.T) {
	loc := t.TempDir()
	r := New(loc, true)

	_, e := r.OnStart(testSpec("run1"))
	require.NoError(t, e)
	_, e = r.OnStart(testSpec("run2"))
	require.NoError(t, e)
	_, e = r.OnStart(testSpec("run3"))
	require.NoError(t, e)

	res := r.List()
	require.Len(t, res, 3)
	assert.Equal(t, "listings.csv", res[0].Spec.CSVFilename)

	// old journal files dropped from the list and removed
	old := filepath.Join(loc, "run1-3.scrapn")
	require.NoError(t, os.Chtimes(old,
		time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)))
	res = r.List()
	assert.Len(t, res, 2)
	assert.NoFileExists(t, old)

	// corrupted journal removed too
	bad := filepath.Join(loc, "bad.scrapn")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o600))
	res = r.List()
	assert.Len(t, res, 2)
	assert.NoFileExists(t, bad)

	// non-journal files ignored
	require.NoError(t, os.WriteFile(filepath.Join(loc, "notes.txt"), []byte("x"), 0o600))
	assert.Len(t, r.List(), 2)

	r.enabled = false
	assert.Empty(t, r.List())
}

func TestResumer_String(t *testing.T) {
	r := New("/tmp/loc", false)
	assert.Equal(t, "enabled:false, location:/tmp/loc", r.String())
}
