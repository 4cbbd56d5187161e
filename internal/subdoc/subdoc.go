// Package subdoc defines the in-memory representation of a translatable
// document: an ordered list of segments plus the raw bytes needed to
// reproduce everything that is not translated.
package subdoc

// Format identifies which codec produced a document.
type Format string

const (
	FormatSRT     Format = "srt"
	FormatLocJSON Format = "locjson"
)

// SegmentKind distinguishes translatable text from structural content.
type SegmentKind int

const (
	KindText SegmentKind = iota
	KindMarker
)

// SegmentStatus is the lifecycle state of one segment.
type SegmentStatus string

const (
	StatusPending    SegmentStatus = "pending"
	StatusInFlight   SegmentStatus = "in_flight"
	StatusTranslated SegmentStatus = "translated"
	StatusFallback   SegmentStatus = "fallback"
	StatusFailed     SegmentStatus = "failed"
)

// Span is a half-open byte range [Start, End) into Document.Raw.
type Span struct {
	Start int
	End   int
}

// Segment is one unit of a parsed document. Text segments carry the
// translatable payload; marker segments carry structure verbatim.
type Segment struct {
	ID         int
	Kind       SegmentKind
	Original   string
	Translated string
	Status     SegmentStatus

	// Span locates the segment's source bytes in Document.Raw.
	Span Span

	// Subtitle metadata: the entry's index as written in the file and
	// its timing line, both kept opaque.
	EntryIndex int
	Timing     string

	// Localization metadata: the key path down to this value and any
	// comment attached to it in the source.
	KeyPath []string
	Comment string
}

// OutputText resolves the text a segment contributes to output: the
// translation when one was produced, the original otherwise. Pending,
// Fallback and Failed segments are all covered by the original.
func (s *Segment) OutputText() string {
	if s.Status == StatusTranslated && s.Translated != "" {
		return s.Translated
	}
	return s.Original
}

// Document is the parsed form of one input file. It is owned by a single
// processing run at a time and never shared across files or jobs.
type Document struct {
	Format   Format
	Raw      []byte
	Newline  string
	Segments []Segment
}

// TextSegments returns the number of translatable segments.
func (d *Document) TextSegments() int {
	n := 0
	for i := range d.Segments {
		if d.Segments[i].Kind == KindText {
			n++
		}
	}
	return n
}

// Count returns the number of text segments in the given status.
func (d *Document) Count(status SegmentStatus) int {
	n := 0
	for i := range d.Segments {
		if d.Segments[i].Kind == KindText && d.Segments[i].Status == status {
			n++
		}
	}
	return n
}

// Merge resolves every segment of a document to its final output text and
// returns the result as a new document. For each text segment the
// translation is used when status is Translated, otherwise the original
// text. Pure: no I/O, the input document is not modified. A cancelled
// run's document fed through Merge and Serialize is always a complete,
// structurally valid file.
func Merge(doc *Document) *Document {
	out := &Document{
		Format:   doc.Format,
		Raw:      doc.Raw,
		Newline:  doc.Newline,
		Segments: make([]Segment, len(doc.Segments)),
	}
	copy(out.Segments, doc.Segments)
	for i := range out.Segments {
		seg := &out.Segments[i]
		if seg.Kind != KindText {
			continue
		}
		if seg.Status != StatusTranslated || seg.Translated == "" {
			seg.Translated = seg.Original
		}
	}
	return out
}
