package codec

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dvelkov/subtrans/internal/subdoc"
)

// SRTCodec reads and writes SubRip subtitle files. Each entry is a numeric
// index line, a timing line, and one or more text lines; the text lines of
// an entry collapse into a single segment joined by "\n". Index and timing
// lines, blank separators, BOMs and stray lines are reproduced verbatim
// from the source bytes.
type SRTCodec struct{}

var timingRe = regexp.MustCompile(`^\d+:\d{2}:\d{2},\d{3}\s*-->\s*\d+:\d{2}:\d{2},\d{3}`)

type srtLine struct {
	text  string // content without line terminator
	start int    // byte offset of content
	end   int    // byte offset past content, before terminator
	num   int    // 1-based line number
}

func splitLines(raw []byte) []srtLine {
	var lines []srtLine
	start := 0
	num := 1
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			end := i
			if end > start && raw[end-1] == '\r' {
				end--
			}
			lines = append(lines, srtLine{text: string(raw[start:end]), start: start, end: end, num: num})
			start = i + 1
			num++
		}
	}
	if start < len(raw) {
		lines = append(lines, srtLine{text: string(raw[start:]), start: start, end: len(raw), num: num})
	}
	return lines
}

func isIndexLine(s string) bool {
	// A UTF-8 BOM may sit in front of the first index.
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Parse converts raw SRT bytes into a document. Anything outside entry
// text blocks is structural and survives serialization untouched.
func (c *SRTCodec) Parse(raw []byte) (*subdoc.Document, error) {
	doc := &subdoc.Document{
		Format:  subdoc.FormatSRT,
		Raw:     raw,
		Newline: detectNewline(raw),
	}

	lines := splitLines(raw)
	i := 0
	for i < len(lines) {
		if !isIndexLine(lines[i].text) {
			i++
			continue
		}
		idxLine := lines[i]
		entryIndex, _ := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(idxLine.text, "\uFEFF")))

		if i+1 >= len(lines) {
			return nil, &FormatError{Line: idxLine.num, Detail: "subtitle index without timing line"}
		}
		timingLine := lines[i+1]
		if !timingRe.MatchString(strings.TrimSpace(timingLine.text)) {
			return nil, &FormatError{Line: timingLine.num, Detail: "malformed timing line: " + strings.TrimSpace(timingLine.text)}
		}

		doc.Segments = append(doc.Segments, subdoc.Segment{
			ID:         len(doc.Segments),
			Kind:       subdoc.KindMarker,
			Original:   string(raw[idxLine.start:timingLine.end]),
			Status:     subdoc.StatusPending,
			Span:       subdoc.Span{Start: idxLine.start, End: timingLine.end},
			EntryIndex: entryIndex,
			Timing:     strings.TrimSpace(timingLine.text),
		})

		i += 2
		first := -1
		last := -1
		var texts []string
		for i < len(lines) && strings.TrimSpace(lines[i].text) != "" {
			if first < 0 {
				first = i
			}
			last = i
			texts = append(texts, lines[i].text)
			i++
		}
		if first >= 0 {
			doc.Segments = append(doc.Segments, subdoc.Segment{
				ID:         len(doc.Segments),
				Kind:       subdoc.KindText,
				Original:   strings.Join(texts, "\n"),
				Status:     subdoc.StatusPending,
				Span:       subdoc.Span{Start: lines[first].start, End: lines[last].end},
				EntryIndex: entryIndex,
				Timing:     strings.TrimSpace(timingLine.text),
			})
		}
	}

	return doc, nil
}

// Serialize writes the document back out. Translated segments replace
// their text block, with multi-line text split on "\n" and re-joined with
// the file's own newline style; everything else is the original bytes.
func (c *SRTCodec) Serialize(doc *subdoc.Document) []byte {
	return splice(doc, func(seg *subdoc.Segment) []byte {
		parts := strings.Split(seg.OutputText(), "\n")
		return []byte(strings.Join(parts, doc.Newline))
	})
}

func detectNewline(raw []byte) string {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			if i > 0 && raw[i-1] == '\r' {
				return "\r\n"
			}
			return "\n"
		}
	}
	return "\n"
}
