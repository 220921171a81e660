// Package markup tokenizes the "**bold**" convention used in suggestion text.
// It is not a markdown parser: segments alternate plain/emphasized on the
// "**" delimiter and nothing nests.
package markup

import "strings"

// Delimiter separates plain and emphasized segments.
const Delimiter = "**"

// Segment is one run of text.
type Segment struct {
	Text       string
	Emphasized bool
}

// Parse splits text on Delimiter. Odd-indexed parts are emphasized, even ones
// are not. When the delimiters are unbalanced the trailing part stays plain
// and keeps its opening marker. Empty parts are dropped.
func Parse(text string) []Segment {
	parts := strings.Split(text, Delimiter)
	unmatched := len(parts)%2 == 0

	segments := make([]Segment, 0, len(parts))
	for i, part := range parts {
		emphasized := i%2 == 1
		if unmatched && i == len(parts)-1 {
			emphasized = false
			part = Delimiter + part
		}
		if part == "" {
			continue
		}
		segments = append(segments, Segment{Text: part, Emphasized: emphasized})
	}
	return segments
}

// Plain returns the text with matched delimiters removed.
func Plain(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Render joins segments, passing emphasized ones through emph.
func Render(segments []Segment, emph func(string) string) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Emphasized && emph != nil {
			b.WriteString(emph(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
