package generator

import (
	"fmt"
	"strings"
	"testing"
)

func TestBuildContextIncludesTreeAndKeyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/demo\n")
	writeFile(t, dir, "README.md", "# Demo\n")
	writeFile(t, dir, "internal/a/a.go", "package a\n")

	g := New(&fakeLLM{}, dir, WithKeyFiles([]string{"go.mod", "README.md", "missing.txt"}))
	snapshot := g.BuildContext()

	if !strings.Contains(snapshot, "## Directory Structure") {
		t.Error("Snapshot should contain the directory tree section")
	}
	if !strings.Contains(snapshot, "a.go") {
		t.Error("Tree should list nested files")
	}
	if !strings.Contains(snapshot, "## File: go.mod") {
		t.Error("Snapshot should contain the go.mod section")
	}
	if !strings.Contains(snapshot, "module example.com/demo") {
		t.Error("Snapshot should contain key file content")
	}
	if strings.Contains(snapshot, "missing.txt") {
		t.Error("Missing key files should be silently skipped")
	}
}

func TestBuildContextCapsLongFiles(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	writeFile(t, dir, "big.txt", b.String())

	g := New(&fakeLLM{}, dir, WithKeyFiles([]string{"big.txt"}), WithLineCap(10))
	snapshot := g.BuildContext()

	if !strings.Contains(snapshot, "line 9") {
		t.Error("Snapshot should contain lines inside the cap")
	}
	if strings.Contains(snapshot, "line 20") {
		t.Error("Snapshot should not contain lines beyond the cap")
	}
	if !strings.Contains(snapshot, "truncated") {
		t.Error("Capped file should carry a truncation marker")
	}
}

func TestBuildContextSkipsDotAndVendorDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, ".git/config", "noise")
	writeFile(t, dir, "node_modules/pkg/index.js", "noise")

	g := New(&fakeLLM{}, dir)
	snapshot := g.BuildContext()

	if strings.Contains(snapshot, "node_modules") {
		t.Error("Tree should skip node_modules")
	}
	if strings.Contains(snapshot, ".git") {
		t.Error("Tree should skip dot directories")
	}
}
