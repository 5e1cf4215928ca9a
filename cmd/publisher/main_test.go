package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeimpact/internal/config"
)

func TestSelectSections(t *testing.T) {
	tests := []struct {
		only string
		want []string
	}{
		{"", sectionNames()},
		{"prices", []string{"prices"}},
		{"Explorer, story", []string{"story", "explorer"}},
		{"debt,debt", []string{"debt"}},
	}
	for _, tt := range tests {
		t.Run(tt.only, func(t *testing.T) {
			selected, err := selectSections(tt.only)
			require.NoError(t, err)
			names := make([]string, len(selected))
			for i, s := range selected {
				names[i] = s.name
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err := selectSections("story,maps")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	meta := metaFile{GeneratedAt: "2022-06-01T00:00:00Z", RunID: "6f1c", Files: []string{"wheat.csv"}}
	require.NoError(t, writeJSON(path, meta))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "6f1c", got["run_id"])
	assert.Equal(t, []any{"wheat.csv"}, got["files"])
}

func TestBuildCmdFlags(t *testing.T) {
	root := newRootCmd(viper.New())
	build, _, err := root.Find([]string{"build"})
	require.NoError(t, err)
	assert.NotNil(t, build.Flags().Lookup("out"))
	assert.NotNil(t, build.Flags().Lookup("only"))
}
