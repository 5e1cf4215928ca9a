package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeimpact/internal/baci"
)

func writeRaw(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestBACICommand(t *testing.T) {
	raw := t.TempDir()
	snapshots := t.TempDir()
	writeRaw(t, raw, map[string]string{
		baci.CountryCodesFile: "country_code,iso_3digit_alpha\n643,RUS\n804,UKR\n818,EGY\n",
		baci.RawFile(2020):    "t,i,j,k,v,q\n2020,643,818,100199,10.5,20\n2020,804,818,100199,3,NA\n",
	})

	root := newRootCmd(viper.New())
	root.SetArgs([]string{
		"baci",
		"--raw", raw,
		"--snapshots", snapshots,
		"--db", "",
		"--log-level", "error",
		"--from", "2020",
		"--to", "2020",
		"--full",
	})
	require.NoError(t, root.ExecuteContext(context.Background()))

	records, err := baci.Read(snapshots, 2020)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	full, err := baci.ReadFull(snapshots)
	require.NoError(t, err)
	require.Len(t, full, 2)
	assert.True(t, full[0].Quantity.Valid)
}

func TestBACICommandMissingYear(t *testing.T) {
	raw := t.TempDir()
	writeRaw(t, raw, map[string]string{
		baci.CountryCodesFile: "country_code,iso_3digit_alpha\n643,RUS\n",
	})

	root := newRootCmd(viper.New())
	root.SetArgs([]string{"baci", "--raw", raw, "--db", "", "--log-level", "error", "--from", "2019", "--to", "2019"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "convert 2019")
}

func TestCommands(t *testing.T) {
	root := newRootCmd(viper.New())
	names := make([]string, 0)
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"baci", "prices", "indicators", "all"})
}
