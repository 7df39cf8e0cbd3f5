package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/decadal/internal/model"
	"gopkg.in/yaml.v3"
)

// DataName is the artifact base name of the full dataset
const DataName = "data"

// Renderer serializes record sequences to artifacts in one directory
type Renderer struct {
	dir    string
	format string
	indent int
	atomic bool
}

// NewRenderer creates a Renderer writing format ("json" or "yaml") into dir
func NewRenderer(dir, format string, indent int, atomic bool) (*Renderer, error) {
	switch format {
	case model.FormatJSON, model.FormatYAML:
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return &Renderer{dir: dir, format: format, indent: indent, atomic: atomic}, nil
}

// Ext returns the artifact file extension including the dot
func (r *Renderer) Ext() string {
	return "." + r.format
}

// Path returns the destination of the artifact called name
func (r *Renderer) Path(name string) string {
	return filepath.Join(r.dir, name+r.Ext())
}

// Encode serializes records as a single array. Values stay strings and
// keys are sorted, so equal input always yields equal bytes.
func (r *Renderer) Encode(records []model.Record) ([]byte, error) {
	if records == nil {
		records = []model.Record{}
	}

	switch r.format {
	case model.FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if r.indent > 0 {
			enc.SetIndent("", strings.Repeat(" ", r.indent))
		}
		if err := enc.Encode(records); err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// Emit writes records to the artifact called name, creating or overwriting it
func (r *Renderer) Emit(ctx context.Context, name string, records []model.Record) (model.Artifact, error) {
	path := r.Path(name)
	artifact := model.Artifact{Name: name, Path: path, Count: len(records)}

	if err := ctx.Err(); err != nil {
		return artifact, &model.IOError{Path: path, Err: err}
	}

	data, err := r.Encode(records)
	if err != nil {
		return artifact, &model.IOError{Path: path, Err: err}
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return artifact, &model.IOError{Path: path, Err: fmt.Errorf("create output dir: %w", err)}
	}

	if r.atomic {
		err = writeAtomic(path, data)
	} else {
		err = os.WriteFile(path, data, 0644)
	}
	if err != nil {
		return artifact, &model.IOError{Path: path, Err: err}
	}

	artifact.Bytes = int64(len(data))
	return artifact, nil
}

// writeAtomic writes data to a temp file in the destination directory and
// renames it over path
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
