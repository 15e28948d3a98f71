package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileExecute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.txt")
	if err := os.WriteFile(path, []byte("line one\nline two"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewReadFile()
	args, _ := json.Marshal(map[string]string{"path": path})
	result, err := f.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if result != "line one\nline two" {
		t.Errorf("unexpected content: %q", result)
	}
}

func TestReadFileMissingPath(t *testing.T) {
	f := NewReadFile()
	if _, err := f.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestReadFileNotFound(t *testing.T) {
	f := NewReadFile()
	args, _ := json.Marshal(map[string]string{"path": filepath.Join(t.TempDir(), "nope.txt")})
	if _, err := f.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadFileTruncatesLargeContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", maxReadFileChars+100)), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewReadFile()
	args, _ := json.Marshal(map[string]string{"path": path})
	result, err := f.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(result, "[Content truncated]") {
		t.Error("expected truncation marker")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(NewBash())
	r.Register(NewReadFile())

	if _, ok := r.Get("read_file"); !ok {
		t.Error("read_file should be registered")
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("unknown tool should not resolve")
	}
	if len(r.Names()) != 2 {
		t.Errorf("expected 2 names, got %d", len(r.Names()))
	}
	if len(r.AsLLMTools()) != 2 {
		t.Errorf("expected 2 llm tools, got %d", len(r.AsLLMTools()))
	}
}
