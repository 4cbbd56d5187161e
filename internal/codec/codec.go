// Package codec parses structured text files into subdoc documents and
// serializes them back. Each codec guarantees that serializing a document
// it parsed, with no translations applied, reproduces the input
// byte-for-byte.
package codec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvelkov/subtrans/internal/subdoc"
)

// Codec converts raw file bytes to a Document and back.
type Codec interface {
	Parse(raw []byte) (*subdoc.Document, error)
	Serialize(doc *subdoc.Document) []byte
}

// FormatError reports input that is not well-formed for a codec's format.
type FormatError struct {
	Line   int
	Detail string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Detail)
	}
	return e.Detail
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".srt":  true,
	".json": true,
}

// ForFile returns the appropriate codec for a filename.
func ForFile(filename string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".srt":
		return &SRTCodec{}, nil
	case ".json":
		return &LocJSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// splice rebuilds output from the document's raw bytes, substituting each
// translated text segment's span with its encoded translation. Untouched
// segments copy their original bytes, so a document with no translations
// serializes to exactly its input.
func splice(doc *subdoc.Document, encode func(seg *subdoc.Segment) []byte) []byte {
	var out []byte
	prev := 0
	for i := range doc.Segments {
		seg := &doc.Segments[i]
		if seg.Kind != subdoc.KindText {
			continue
		}
		out = append(out, doc.Raw[prev:seg.Span.Start]...)
		if seg.OutputText() == seg.Original {
			out = append(out, doc.Raw[seg.Span.Start:seg.Span.End]...)
		} else {
			out = append(out, encode(seg)...)
		}
		prev = seg.Span.End
	}
	out = append(out, doc.Raw[prev:]...)
	return out
}
