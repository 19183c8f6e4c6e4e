package task

import (
	"bytes"
	"context"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/source"
)

// BoundaryScan finds the first row boundary at or after Offset by scanning
// at most MaxRowSize bytes for the line-break byte. Boundary scans never
// look inside quoting state; the max-row-size contract guarantees a real
// row end within the window.
type BoundaryScan struct {
	Source     source.ByteSource
	Offset     int64
	MaxRowSize int
	LineBreak  byte
}

// Boundary is the byte offset just past a row's line break. The final chunk
// of a source without a trailing line break reports the source size.
type Boundary struct {
	Offset int64
}

func (t *BoundaryScan) Kind() Kind { return KindBoundaryScan }

func (t *BoundaryScan) Run(ctx context.Context) (interface{}, error) {
	size := t.Source.Size()
	if t.Offset >= size {
		return &Boundary{Offset: size}, nil
	}

	end := t.Offset + int64(t.MaxRowSize)
	if end > size {
		end = size
	}
	window, err := t.Source.Slice(t.Offset, end).Load(ctx)
	if err != nil {
		return nil, err
	}

	if i := bytes.IndexByte(window, t.LineBreak); i >= 0 {
		return &Boundary{Offset: t.Offset + int64(i) + 1}, nil
	}
	if end == size {
		// The source's last row ends at EOF without a line break.
		return &Boundary{Offset: size}, nil
	}
	return nil, errors.New(errors.ErrorTypeData, "no row boundary within the max row size window").
		WithDetail("offset", t.Offset).
		WithDetail("max_row_size", t.MaxRowSize)
}
