package scan

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// ResolveEncoding maps a configured encoding name to a decoder for field
// values. UTF-8 and its aliases resolve to nil, meaning values need no
// transform. UTF-16 encodings are rejected: the tokenizer matches structural
// bytes directly, which requires an ASCII-compatible encoding.
func ResolveEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unknown text encoding").
			WithDetail("encoding", name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unsupported text encoding").
			WithDetail("encoding", name)
	}
	switch canonical {
	case "utf-8":
		return nil, nil
	case "utf-16be", "utf-16le", "replacement":
		return nil, errors.New(errors.ErrorTypeConfig, "encoding is not byte-compatible with delimiter scanning").
			WithDetail("encoding", canonical)
	}
	return enc, nil
}
