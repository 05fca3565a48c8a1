// Package output writes extraction artifacts to disk: one JSON document and
// one columnar (parquet) copy per processed document, both replaced
// atomically.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// FileWriter writes artifacts under root/json and root/parquet.
type FileWriter struct {
	root string
}

// NewFileWriter creates a writer rooted at root.
func NewFileWriter(root string) *FileWriter {
	return &FileWriter{root: root}
}

// Write persists payload as <root>/json/<id>.json and
// <root>/parquet/<id>.parquet and returns both paths. The parquet copy
// flattens nested values to JSON-encoded strings; scalars keep their text
// form, so every column is a string and the schema stays stable across
// documents.
func (w *FileWriter) Write(ctx context.Context, documentID string, payload map[string]any) (map[string]string, error) {
	jsonPath := filepath.Join(w.root, "json", documentID+".json")
	parquetPath := filepath.Join(w.root, "parquet", documentID+".parquet")

	jsonBytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := atomicWrite(jsonPath, jsonBytes); err != nil {
		return nil, err
	}

	parquetBytes, err := encodeParquet(payload)
	if err != nil {
		return nil, err
	}
	if err := atomicWrite(parquetPath, parquetBytes); err != nil {
		return nil, err
	}

	return map[string]string{
		"json_path":    jsonPath,
		"parquet_path": parquetPath,
	}, nil
}

// encodeParquet renders the flattened payload as a single-row parquet file.
func encodeParquet(payload map[string]any) ([]byte, error) {
	flat, err := Flatten(payload)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(flat))
	for name := range flat {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	group := parquet.Group{}
	for _, name := range columns {
		group[name] = parquet.String()
	}
	schema := parquet.NewSchema("extraction", group)

	row := make(map[string]string, len(flat))
	for name, value := range flat {
		row[name] = value
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[map[string]string](&buf, schema)
	if _, err := writer.Write([]map[string]string{row}); err != nil {
		return nil, fmt.Errorf("failed to write parquet row: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

// Flatten maps the payload to string columns: nested dicts and lists become
// JSON-encoded strings, scalars their plain text form.
func Flatten(payload map[string]any) (map[string]string, error) {
	flat := make(map[string]string, len(payload))
	for key, value := range payload {
		switch v := value.(type) {
		case nil:
			flat[key] = ""
		case string:
			flat[key] = v
		case map[string]any, []any, []string, []map[string]any:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode column %s: %w", key, err)
			}
			flat[key] = string(encoded)
		default:
			flat[key] = fmt.Sprintf("%v", v)
		}
	}
	return flat, nil
}
