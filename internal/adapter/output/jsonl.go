package output

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

// JSONL writes one JSON object per entry. With indent set, each object is
// pretty-printed and followed by a blank line instead.
type JSONL struct {
	w      *bufio.Writer
	closer io.Closer
	indent bool
	count  int
}

// NewJSONL writes to w. The caller keeps ownership of w.
func NewJSONL(w io.Writer, indent bool) *JSONL {
	return &JSONL{w: bufio.NewWriterSize(w, 256*1024), indent: indent}
}

// CreateJSONL writes to path, or to stdout when path is "-" or empty.
func CreateJSONL(path string, indent bool) (*JSONL, error) {
	if path == "" || path == "-" {
		return NewJSONL(os.Stdout, indent), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	s := NewJSONL(f, indent)
	s.closer = f
	return s, nil
}

// Emit writes e.
func (s *JSONL) Emit(_ context.Context, e domain.Entry) error {
	var (
		data []byte
		err  error
	)
	if s.indent {
		data, err = json.MarshalIndent(e, "", "  ")
	} else {
		data, err = json.Marshal(e)
	}
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	sep := "\n"
	if s.indent {
		sep = "\n\n"
	}
	if _, err := s.w.WriteString(sep); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	s.count++
	return nil
}

// Count returns the number of entries written so far.
func (s *JSONL) Count() int { return s.count }

// Finish flushes buffered output and closes the file if this sink opened it.
func (s *JSONL) Finish(context.Context, error) error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
