package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/lab/mwp-encoder/pkg/schema"
)

// LoadReport counts what LoadRecords had to repair or skip.
type LoadReport struct {
	Format  string
	Read    int
	Fixed   int
	Skipped int
}

// LoadRecords reads a JSON array or JSON Lines file. Lines that fail to parse are retried
// after a repair pass and skipped when still broken. limit > 0 keeps the first limit records.
func LoadRecords(path string, limit int) ([]schema.Record, LoadReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("failed to read input file: %w", err)
	}
	trimmed := bytes.TrimSpace(content)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		return loadArray(string(content), limit)
	}
	return loadLines(string(content), limit)
}

func loadArray(content string, limit int) ([]schema.Record, LoadReport, error) {
	report := LoadReport{Format: "json"}
	var raw []map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		fixed, changed := fixJSONContent(content)
		if !changed {
			return nil, report, fmt.Errorf("failed to parse JSON array: %w", err)
		}
		if err := json.Unmarshal([]byte(fixed), &raw); err != nil {
			return nil, report, fmt.Errorf("failed to parse JSON array: %w", err)
		}
		report.Fixed = 1
	}
	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}
	records := make([]schema.Record, 0, len(raw))
	for _, m := range raw {
		rec, err := schema.DecodeRecord(m)
		if err != nil {
			report.Skipped++
			continue
		}
		records = append(records, rec)
	}
	report.Read = len(records)
	return records, report, nil
}

func loadLines(content string, limit int) ([]schema.Record, LoadReport, error) {
	report := LoadReport{Format: "jsonl"}
	var records []schema.Record
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if limit > 0 && len(records) >= limit {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			if err := json.Unmarshal([]byte(fixJSONString(line)), &m); err != nil {
				report.Skipped++
				continue
			}
			report.Fixed++
		}
		rec, err := schema.DecodeRecord(m)
		if err != nil {
			report.Skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, report, fmt.Errorf("failed to scan input file: %w", err)
	}
	report.Read = len(records)
	return records, report, nil
}

var (
	invalidEscapeRegex    = regexp.MustCompile(`\\x[0-9a-fA-F]{2}`)
	controlCharRegex      = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	invalidBackslashRegex = regexp.MustCompile(`\\[^"\\bfnrtu/]`)
)

func fixJSONContent(content string) (string, bool) {
	fixed := fixJSONString(content)

	// Close a truncated array.
	trimmed := strings.TrimSpace(fixed)
	if strings.HasPrefix(trimmed, "[") && !strings.HasSuffix(trimmed, "]") {
		fixed = strings.TrimRight(trimmed, ",") + "\n]"
	}
	return fixed, fixed != content
}

// fixJSONString drops \x escapes, raw control characters and backslashes that do not start
// a valid JSON escape.
func fixJSONString(jsonStr string) string {
	fixed := invalidEscapeRegex.ReplaceAllString(jsonStr, "")
	fixed = controlCharRegex.ReplaceAllString(fixed, "")
	return invalidBackslashRegex.ReplaceAllString(fixed, "")
}
