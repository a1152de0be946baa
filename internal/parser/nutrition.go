package parser

import (
	"regexp"
	"sort"
	"strings"
)

const ServingSizeKey = "serving_size"

var servingPattern = regexp.MustCompile(`^Per (.*)`)

// ParseNutrition turns free-form nutrition text into a map. A leading
// "Per <serving>" line becomes serving_size. Other lines are split on their
// first colon; lines without one, or with an empty key, are dropped.
func ParseNutrition(text string) map[string]string {
	out := make(map[string]string)

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if m := servingPattern.FindStringSubmatch(strings.TrimSpace(lines[0])); m != nil {
		out[ServingSizeKey] = strings.TrimSpace(m[1])
		lines = lines[1:]
	}

	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}

	return out
}

// FormatNutrition renders a parsed map back to text with sorted keys. Feeding
// the result to ParseNutrition is lossy for keys containing a colon.
func FormatNutrition(info map[string]string) string {
	var b strings.Builder

	if serving, ok := info[ServingSizeKey]; ok {
		b.WriteString("Per ")
		b.WriteString(serving)
		b.WriteString("\n")
	}

	keys := make([]string, 0, len(info))
	for k := range info {
		if k != ServingSizeKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(info[k])
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
