package logmine

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `2025-01-01 10:00:00,000 - ERROR - Error fetching PDP URL https://blinkit.com/prn/product/prid/500 (ID: 500): 403 Client Error: Forbidden for url: https://blinkit.com/prn/product/prid/500
2025-01-01 10:00:01,000 - ERROR - Error fetching PDP URL https://blinkit.com/prn/product/prid/42 (ID: 42): 404 Client Error: Not Found for url
time=2025-01-01T10:00:02Z level=ERROR msg="detail fetch failed" error="fetch error for https://blinkit.com/prn/product/prid/1000 (ID: 1000): unexpected status 403 Forbidden"
time=2025-01-01T10:00:03Z level=ERROR msg="detail fetch failed" error="fetch error for https://blinkit.com/prn/product/prid/500 (ID: 500): unexpected status 403 Forbidden"
time=2025-01-01T10:00:04Z level=INFO msg="fetched" id=9
time=2025-01-01T10:00:05Z level=ERROR msg="detail fetch failed" error="fetch error for https://blinkit.com/prn/product/prid/99 (ID: 99): unexpected status 403 Forbidden"
`

func TestExtractFailedIDs(t *testing.T) {
	ids, err := ExtractFailedIDs(strings.NewReader(sampleLog), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"99", "500", "1000"}, ids)
}

func TestExtractFailedIDsCustomPattern(t *testing.T) {
	ids, err := ExtractFailedIDs(strings.NewReader(sampleLog), regexp.MustCompile(`\(ID: (\d+)\): 404`))
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, ids)

	_, err = ExtractFailedIDs(strings.NewReader(sampleLog), regexp.MustCompile(`ID: \d+`))
	assert.Error(t, err)
}

func TestExtractFailedIDsEmpty(t *testing.T) {
	ids, err := ExtractFailedIDs(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSortNumbers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
		hasError bool
	}{
		{"numeric not lexical", "10\n9\n100\n", []string{"9", "10", "100"}, false},
		{"blank lines skipped", "\n3\n\n1\n", []string{"1", "3"}, false},
		{"duplicates kept", "2\n2\n1", []string{"1", "2", "2"}, false},
		{"larger than int64", "99999999999999999999\n1", []string{"1", "99999999999999999999"}, false},
		{"bad line", "1\nabc\n", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nums, err := SortNumbers(strings.NewReader(tt.input))
			if tt.hasError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "line 2")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, nums)
		})
	}
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLines(&buf, []string{"1", "2"}))
	assert.Equal(t, "1\n2\n", buf.String())
}

func TestExtractAndSortFiles(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "scrape.log")
	failedPath := filepath.Join(dir, "failed_ids.txt")
	sortedPath := filepath.Join(dir, "sorted.txt")
	require.NoError(t, os.WriteFile(logPath, []byte(sampleLog), 0o644))

	ids, err := ExtractFile(logPath, failedPath, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	data, err := os.ReadFile(failedPath)
	require.NoError(t, err)
	assert.Equal(t, "99\n500\n1000\n", string(data))

	nums, err := SortFile(failedPath, sortedPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"99", "500", "1000"}, nums)

	_, err = ExtractFile(filepath.Join(dir, "missing.log"), failedPath, nil)
	assert.Error(t, err)
}
