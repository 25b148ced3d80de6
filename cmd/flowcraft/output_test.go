package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kalambet/flowcraft/internal/marketing"
)

func TestTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	tb := newTable(&buf)
	tb.row("ID", "STATUS")
	tb.row("abcdef12", "active")
	if err := tb.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if strings.Index(lines[0], "STATUS") != strings.Index(lines[1], "active") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestStatusLabel(t *testing.T) {
	noColor = true
	t.Cleanup(func() { noColor = false })

	if got := statusLabel(marketing.StatusDraft); got != "draft " {
		t.Errorf("statusLabel(draft) = %q", got)
	}

	noColor = false
	got := statusLabel(marketing.StatusActive)
	if !strings.HasPrefix(got, ansiGreen) || !strings.Contains(got, "active") {
		t.Errorf("statusLabel(active) = %q, want green", got)
	}
}
