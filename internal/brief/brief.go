// Package brief turns a campaign brief file into flow constraints.
package brief

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

const maxBriefSize = 5 << 20 // 5MB

// fieldLine matches "Key: value" lines such as "Budget: 5000" or
// "Target audience: founders".
var fieldLine = regexp.MustCompile(`^([A-Za-z][A-Za-z _-]{0,40}):\s+(.+)$`)

// ReadFile extracts the plain text of a .pdf file, or reads any other file
// as UTF-8 text.
func ReadFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading brief: %w", err)
	}
	if len(data) > maxBriefSize {
		return "", fmt.Errorf("brief %s exceeds %d bytes", path, maxBriefSize)
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf brief: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(text, maxBriefSize)); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return buf.String(), nil
}

// Constraints parses brief text. "Key: value" lines become constraints keyed
// by the snake_cased key, with numeric values parsed as numbers. Every other
// non-empty line is kept, in order, under "brief".
func Constraints(text string) map[string]any {
	out := make(map[string]any)
	var rest []string

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), maxBriefSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if m := fieldLine.FindStringSubmatch(line); m != nil {
			out[fieldKey(m[1])] = fieldValue(m[2])
			continue
		}
		rest = append(rest, line)
	}
	if len(rest) > 0 {
		out["brief"] = strings.Join(rest, "\n")
	}
	return out
}

// Load reads path and parses it into constraints.
func Load(path string) (map[string]any, error) {
	text, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Constraints(text), nil
}

func fieldKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

func fieldValue(v string) any {
	v = strings.TrimSpace(v)
	clean := strings.NewReplacer(",", "", "$", "").Replace(v)
	if n, err := strconv.ParseFloat(clean, 64); err == nil {
		return n
	}
	return v
}
