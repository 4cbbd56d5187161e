package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvelkov/subtrans/internal/subdoc"
)

// LocJSONCodec reads and writes hierarchical key/value localization files.
// Every string value, at any nesting depth, becomes one translatable
// segment carrying its key path. Keys, key order, punctuation, whitespace,
// non-string leaves and //-style comments are reproduced byte-for-byte:
// parsing records the byte span of each string value and serialization
// splices translations into the original bytes.
type LocJSONCodec struct{}

const (
	stateKey = iota
	stateColon
	stateValue
	stateNext
)

type locFrame struct {
	object bool
	name   string // key or array index this container sits under
	key    string // current key inside an object
	index  int    // next element index inside an array
	state  int
}

type locScanner struct {
	raw     []byte
	pos     int
	line    int
	stack   []locFrame
	comment string
	doc     *subdoc.Document
}

// Parse converts raw localization-JSON bytes into a document. An empty or
// whitespace-only file yields a document with zero segments.
func (c *LocJSONCodec) Parse(raw []byte) (*subdoc.Document, error) {
	s := &locScanner{
		raw:  raw,
		line: 1,
		doc: &subdoc.Document{
			Format:  subdoc.FormatLocJSON,
			Raw:     raw,
			Newline: detectNewline(raw),
		},
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	return s.doc, nil
}

// Serialize writes the document back out, substituting translated values
// as JSON-escaped string literals in place of the originals.
func (c *LocJSONCodec) Serialize(doc *subdoc.Document) []byte {
	return splice(doc, func(seg *subdoc.Segment) []byte {
		enc, err := json.Marshal(seg.OutputText())
		if err != nil {
			// Marshal of a string cannot fail; keep the original on the
			// impossible path rather than corrupt the file.
			return doc.Raw[seg.Span.Start:seg.Span.End]
		}
		return enc
	})
}

func (s *locScanner) errf(format string, args ...any) error {
	return &FormatError{Line: s.line, Detail: fmt.Sprintf(format, args...)}
}

func (s *locScanner) top() *locFrame {
	if len(s.stack) == 0 {
		return nil
	}
	return &s.stack[len(s.stack)-1]
}

// skipBlank advances past whitespace and // comments, collecting comment
// text so it can be attached to the next translatable value.
func (s *locScanner) skipBlank() {
	for s.pos < len(s.raw) {
		c := s.raw[s.pos]
		switch {
		case c == '\n':
			s.line++
			s.pos++
		case c == ' ' || c == '\t' || c == '\r':
			s.pos++
		case c == '/' && s.pos+1 < len(s.raw) && s.raw[s.pos+1] == '/':
			start := s.pos + 2
			for s.pos < len(s.raw) && s.raw[s.pos] != '\n' {
				s.pos++
			}
			text := strings.TrimSpace(strings.TrimSuffix(string(s.raw[start:s.pos]), "\r"))
			if s.comment == "" {
				s.comment = text
			} else {
				s.comment += "\n" + text
			}
		default:
			return
		}
	}
}

// scanString consumes a string literal starting at the opening quote and
// returns its decoded value plus the span of the full literal.
func (s *locScanner) scanString() (string, subdoc.Span, error) {
	start := s.pos
	s.pos++ // opening quote
	for s.pos < len(s.raw) {
		switch s.raw[s.pos] {
		case '\\':
			s.pos += 2
		case '"':
			s.pos++
			span := subdoc.Span{Start: start, End: s.pos}
			var val string
			if err := json.Unmarshal(s.raw[span.Start:span.End], &val); err != nil {
				return "", span, s.errf("invalid string literal: %v", err)
			}
			return val, span, nil
		case '\n':
			s.line++
			s.pos++
		default:
			s.pos++
		}
	}
	return "", subdoc.Span{}, s.errf("unterminated string")
}

// scanScalar consumes a number, true, false or null.
func (s *locScanner) scanScalar() error {
	start := s.pos
	for s.pos < len(s.raw) && strings.IndexByte(",}] \t\r\n", s.raw[s.pos]) < 0 {
		s.pos++
	}
	tok := string(s.raw[start:s.pos])
	if tok == "true" || tok == "false" || tok == "null" {
		return nil
	}
	if _, err := strconv.ParseFloat(tok, 64); err != nil {
		return s.errf("unexpected token %q", tok)
	}
	return nil
}

func (s *locScanner) pathFor(leaf string) []string {
	if len(s.stack) == 0 {
		return nil
	}
	var path []string
	// The outermost container has no name of its own.
	for _, f := range s.stack[1:] {
		path = append(path, f.name)
	}
	return append(path, leaf)
}

// valueDone advances the enclosing frame's state after a complete value.
func (s *locScanner) valueDone() {
	f := s.top()
	if f == nil {
		return
	}
	if !f.object {
		f.index++
	}
	f.state = stateNext
}

func (s *locScanner) run() error {
	for {
		s.skipBlank()
		if s.pos >= len(s.raw) {
			if len(s.stack) != 0 {
				return s.errf("unexpected end of file")
			}
			return nil
		}

		f := s.top()
		c := s.raw[s.pos]

		// Structural punctuation between values.
		if f != nil && f.state == stateNext {
			switch c {
			case ',':
				s.pos++
				if f.object {
					f.state = stateKey
				} else {
					f.state = stateValue
				}
				continue
			case '}':
				if !f.object {
					return s.errf("unexpected '}' in array")
				}
				s.stack = s.stack[:len(s.stack)-1]
				s.pos++
				s.valueDone()
				continue
			case ']':
				if f.object {
					return s.errf("unexpected ']' in object")
				}
				s.stack = s.stack[:len(s.stack)-1]
				s.pos++
				s.valueDone()
				continue
			default:
				return s.errf("expected ',' or closing bracket, got %q", string(c))
			}
		}

		if f != nil && f.state == stateColon {
			if c != ':' {
				return s.errf("expected ':' after key %q", f.key)
			}
			s.pos++
			f.state = stateValue
			continue
		}

		if f != nil && f.object && f.state == stateKey {
			switch c {
			case '"':
				key, _, err := s.scanString()
				if err != nil {
					return err
				}
				f.key = key
				f.state = stateColon
				continue
			case '}':
				// Empty object or trailing comma tolerance is not needed;
				// only a fresh object reaches here.
				s.stack = s.stack[:len(s.stack)-1]
				s.pos++
				s.valueDone()
				continue
			default:
				return s.errf("expected object key, got %q", string(c))
			}
		}

		// Expecting a value (inside a container or at top level).
		leaf := ""
		if f != nil {
			if f.object {
				leaf = f.key
			} else {
				leaf = strconv.Itoa(f.index)
			}
		}

		switch c {
		case '{':
			s.pos++
			s.stack = append(s.stack, locFrame{object: true, name: leaf, state: stateKey})
		case '[':
			s.pos++
			s.stack = append(s.stack, locFrame{object: false, name: leaf, state: stateValue})
		case ']':
			if f == nil || f.object {
				return s.errf("unexpected ']'")
			}
			// Empty array.
			s.stack = s.stack[:len(s.stack)-1]
			s.pos++
			s.valueDone()
		case '"':
			val, span, err := s.scanString()
			if err != nil {
				return err
			}
			s.doc.Segments = append(s.doc.Segments, subdoc.Segment{
				ID:       len(s.doc.Segments),
				Kind:     subdoc.KindText,
				Original: val,
				Status:   subdoc.StatusPending,
				Span:     span,
				KeyPath:  s.pathFor(leaf),
				Comment:  s.comment,
			})
			s.comment = ""
			s.valueDone()
		default:
			if err := s.scanScalar(); err != nil {
				return err
			}
			s.valueDone()
		}
	}
}
