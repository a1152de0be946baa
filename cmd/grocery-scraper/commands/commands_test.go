package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestMineLogAndSortIDs(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	logPath := filepath.Join(dir, "run.log")
	lines := "level=ERROR msg=\"detail fetch failed\" error=\"fetch error for https://blinkit.com/prn/product/prid/20 (ID: 20): unexpected status 403 Forbidden\"\n" +
		"level=INFO msg=\"extracted variants\" count=2\n" +
		"level=ERROR msg=\"detail fetch failed\" error=\"fetch error for https://blinkit.com/prn/product/prid/3 (ID: 3): unexpected status 403 Forbidden\"\n"
	require.NoError(t, os.WriteFile(logPath, []byte(lines), 0o644))

	out := filepath.Join(dir, "failed.txt")
	require.NoError(t, execute(t, "mine-log", "--log", logPath, "-o", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "3\n20\n", string(data))

	sorted := filepath.Join(dir, "sorted.txt")
	require.NoError(t, os.WriteFile(out, []byte("100\n9\n25\n"), 0o644))
	require.NoError(t, execute(t, "sort-ids", "--in", out, "-o", sorted))

	data, err = os.ReadFile(sorted)
	require.NoError(t, err)
	assert.Equal(t, "9\n25\n100\n", string(data))
}

func TestMineLogMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	err := execute(t, "mine-log", "--log", "does-not-exist.log")
	assert.ErrorContains(t, err, "log file not found")
}

func TestLocationFlagOverridesConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	err := execute(t, "sort-ids", "--location", "Bengaluru", "--in", "missing.txt")
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "Bengaluru", cfg.Site.LocationQuery)
}

func TestReadCategories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Milk","url":"https://blinkit.com/cn/milk/cid/14/922"}]`), 0o644))

	categories, err := readCategories(path)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Milk", categories[0].Name)

	categories, err = readCategories("")
	require.NoError(t, err)
	assert.Nil(t, categories)
}
