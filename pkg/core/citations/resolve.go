// Package citations splits generated text into literal runs and "[S<n>]"
// reference markers resolved against a message's citation set.
package citations

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

var markerPattern = regexp.MustCompile(`\[(S\d+)\]`)

// Segment is either literal text (Citation == nil) or a resolved reference.
type Segment struct {
	Text     string
	Citation *types.Citation
}

// IsReference reports whether the segment resolved to a citation.
func (s Segment) IsReference() bool {
	return s.Citation != nil
}

// Resolve splits text into segments. Markers whose id is not in set are kept
// as literal text; adjacent literals are merged.
func Resolve(text string, set []types.Citation) []Segment {
	if text == "" {
		return nil
	}
	var (
		out     []Segment
		literal strings.Builder
		last    int
	)
	flush := func() {
		if literal.Len() > 0 {
			out = append(out, Segment{Text: literal.String()})
			literal.Reset()
		}
	}
	for _, m := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		literal.WriteString(text[last:m[0]])
		marker := text[m[0]:m[1]]
		id := text[m[2]:m[3]]
		last = m[1]

		c, ok := types.Lookup(set, id)
		if !ok {
			literal.WriteString(marker)
			continue
		}
		flush()
		out = append(out, Segment{Text: marker, Citation: &c})
	}
	literal.WriteString(text[last:])
	flush()
	return out
}

// Render rebuilds text from segments, replacing each resolved reference with
// the output of ref.
func Render(segments []Segment, ref func(types.Citation) string) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Citation != nil && ref != nil {
			b.WriteString(ref(*s.Citation))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Footnotes formats the citation set as a numbered source list, one line per
// citation, in discovery order.
func Footnotes(set []types.Citation) string {
	var b strings.Builder
	for _, c := range set {
		title := c.Title
		if title == "" {
			title = c.Domain
		}
		if title == "" {
			title = c.URL
		}
		fmt.Fprintf(&b, "[%s] %s <%s>\n", c.ID, title, c.URL)
	}
	return b.String()
}
