package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()
	r.RowsRead("baci_2020", 10)
	r.RowsRead("baci_2020", 5)
	r.RowsDropped("baci_2020", "malformed", 2)
	r.RowsDropped("baci_2020", "malformed", 0)
	r.FileWritten("story")
	r.Time("charts_story")()

	assert.Equal(t, 15.0, testutil.ToFloat64(r.rowsRead.WithLabelValues("baci_2020")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.rowsDropped.WithLabelValues("baci_2020", "malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.filesWritten.WithLabelValues("story")))

	expected := `
# HELP tradeimpact_files_written_total Output files written
# TYPE tradeimpact_files_written_total counter
tradeimpact_files_written_total{kind="story"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected), "tradeimpact_files_written_total"))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.RowsRead("x", 1)
	r.RowsDropped("x", "y", 1)
	r.FileWritten("x")
	r.Time("x")()
	assert.NoError(t, r.Flush(filepath.Join(t.TempDir(), "m.prom")))
}

func TestFlush(t *testing.T) {
	r := New()
	assert.NoError(t, r.Flush(""))

	path := filepath.Join(t.TempDir(), "tradeimpact.prom")
	require.NoError(t, r.Flush(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tradeimpact_last_run_timestamp_seconds")
}
