// internal/tools/readfile.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

const maxReadFileChars = 50000

// ReadFile returns the current content of a file. It is read-only and safe
// to run without approval; compaction strategies also use it to refresh
// stale file content in a summarized conversation.
type ReadFile struct{}

// NewReadFile creates a new ReadFile tool.
func NewReadFile() *ReadFile { return &ReadFile{} }

func (f *ReadFile) Name() string        { return "read_file" }
func (f *ReadFile) Description() string { return "Read the current content of a file on disk" }
func (f *ReadFile) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "The file path to read"}
		},
		"required": ["path"]
	}`)
}

func (f *ReadFile) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(params.Path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	content := string(data)
	if len(content) > maxReadFileChars {
		content = content[:maxReadFileChars] + "\n\n[Content truncated]"
	}
	return content, nil
}
