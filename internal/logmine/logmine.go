// Package logmine recovers identifiers from scrape logs so failed detail
// fetches can be retried in a later run.
package logmine

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"os"
	"regexp"
	"sort"
	"strings"
)

// DefaultPattern matches forbidden detail fetches in both the current log
// format and the older "Error fetching PDP URL" lines. Group 1 is the id.
var DefaultPattern = regexp.MustCompile(`(?i)(?:fetch error|error fetching).*?\(ID: (\d+)\).*403 (?:Client Error: )?Forbidden`)

// ExtractFailedIDs scans r line by line and returns the unique identifiers
// captured by the first group of pattern, sorted numerically.
func ExtractFailedIDs(r io.Reader, pattern *regexp.Regexp) ([]string, error) {
	if pattern == nil {
		pattern = DefaultPattern
	}
	if pattern.NumSubexp() < 1 {
		return nil, fmt.Errorf("pattern %q has no capture group", pattern.String())
	}

	seen := make(map[string]bool)
	ids := make([]string, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		m := pattern.FindStringSubmatch(scanner.Text())
		if m == nil || m[1] == "" || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	sortNumeric(ids)
	return ids, nil
}

// SortNumbers reads one integer per line, skipping blank lines, and returns
// them in ascending order. Values are compared as arbitrary-size integers.
func SortNumbers(r io.Reader) ([]string, error) {
	var nums []string

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if _, ok := new(big.Int).SetString(text, 10); !ok {
			return nil, fmt.Errorf("line %d: %q is not an integer", line, text)
		}
		nums = append(nums, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sortNumeric(nums)
	return nums, nil
}

func sortNumeric(values []string) {
	parsed := make(map[string]*big.Int, len(values))
	for _, v := range values {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			n = nil
		}
		parsed[v] = n
	}

	sort.SliceStable(values, func(i, j int) bool {
		a, b := parsed[values[i]], parsed[values[j]]
		switch {
		case a == nil && b == nil:
			return values[i] < values[j]
		case a == nil:
			return false
		case b == nil:
			return true
		}
		if c := a.Cmp(b); c != 0 {
			return c < 0
		}
		return values[i] < values[j]
	})
}

func WriteLines(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := bw.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ExtractFile(logPath, outPath string, pattern *regexp.Regexp) ([]string, error) {
	in, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("log file not found: %w", err)
	}
	defer in.Close()

	ids, err := ExtractFailedIDs(in, pattern)
	if err != nil {
		return nil, err
	}
	return ids, writeFile(outPath, ids)
}

func SortFile(inPath, outPath string) ([]string, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	nums, err := SortNumbers(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inPath, err)
	}
	return nums, writeFile(outPath, nums)
}

func writeFile(path string, lines []string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteLines(out, lines); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
