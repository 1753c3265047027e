package hostaway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource serves the upstream pool from a JSON file: either a bare array
// of reviews or the API envelope {"status": ..., "result": [...]}.
// The file is re-read on every fetch.
type FileSource struct{ path string }

func NewFileSource(path string) *FileSource { return &FileSource{path: path} }

func (f *FileSource) Name() string { return "hostaway" }

func (f *FileSource) FetchReviews(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read mock %s: %w", f.path, err)
	}
	// numbers stay json.Number so large ids are not rounded through float64
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse mock %s: %w", f.path, err)
	}
	switch t := doc.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if arr, ok := t["result"].([]any); ok {
			return arr, nil
		}
	}
	return []any{}, nil
}
