// Package formats persists and exports the merged binary encoding: the
// comet binary columnar container with zero-copy column accessors, plus
// Arrow IPC and Avro OCF exports of the same header+buffer pair.
package formats

import (
	"strings"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// Format identifies an export format.
type Format string

const (
	// FormatBinary is the native comet binary columnar container.
	FormatBinary Format = "binary"
	// FormatArrow is the Arrow IPC file format.
	FormatArrow Format = "arrow"
	// FormatAvro is the Avro object container file format.
	FormatAvro Format = "avro"
)

// ParseFormat resolves a format name. The empty string means FormatBinary.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "binary", "cbc":
		return FormatBinary, nil
	case "arrow", "ipc":
		return FormatArrow, nil
	case "avro", "ocf":
		return FormatAvro, nil
	default:
		return "", errors.New(errors.ErrorTypeConfig, "unsupported export format").
			WithDetail("format", name)
	}
}
