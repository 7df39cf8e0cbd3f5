package model

import "fmt"

// Stage names the pipeline step an error came from
type Stage string

const (
	StageLoad     Stage = "load"
	StageClassify Stage = "classify"
	StageEmit     Stage = "emit"
)

// ParseError reports an input that is missing, unreadable or structurally malformed
type ParseError struct {
	Source string
	Line   int // 0 when the error is not tied to a line
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Stage returns StageLoad
func (e *ParseError) Stage() Stage { return StageLoad }

// ValueError reports a record whose date_inscribed is not an integer
type ValueError struct {
	Row   int    // 1-based data row number (header excluded)
	ID    string // id_no of the offending record, if present
	Field string
	Value string
	Err   error
}

func (e *ValueError) Error() string {
	id := e.ID
	if id == "" {
		id = "?"
	}
	return fmt.Sprintf("row %d (id_no %s): %s %q is not an integer: %v", e.Row, id, e.Field, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// Stage returns StageClassify
func (e *ValueError) Stage() Stage { return StageClassify }

// IOError reports an output artifact that could not be created or written
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Stage returns StageEmit
func (e *IOError) Stage() Stage { return StageEmit }
