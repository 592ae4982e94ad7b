package citations

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

func TestResolve_UnknownMarkerIsLiteral(t *testing.T) {
	s1 := types.Citation{ID: "S1", URL: "https://a.example", Title: "A"}
	got := Resolve("See [S1] and [S9]", []types.Citation{s1})

	want := []Segment{
		{Text: "See "},
		{Text: "[S1]", Citation: &s1},
		{Text: " and [S9]"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Resolve mismatch (-want +got):\n%s", diff)
	}
	if !got[1].IsReference() || got[2].IsReference() {
		t.Fatal("reference flags wrong")
	}
}

func TestResolve_EdgeCases(t *testing.T) {
	set := []types.Citation{{ID: "S1"}, {ID: "S2"}}
	tests := []struct {
		name string
		text string
		refs int
		segs int
	}{
		{"empty", "", 0, 0},
		{"no markers", "plain text", 0, 1},
		{"adjacent markers", "[S1][S2]", 2, 2},
		{"marker at end", "fact [S2]", 1, 2},
		{"lowercase is literal", "[s1]", 0, 1},
		{"no digits is literal", "[S]", 0, 1},
		{"all unknown", "[S3] [S4]", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Resolve(tt.text, set)
			refs := 0
			for _, s := range segs {
				if s.IsReference() {
					refs++
				}
			}
			if refs != tt.refs || len(segs) != tt.segs {
				t.Fatalf("refs=%d segs=%d, want %d/%d (%+v)", refs, len(segs), tt.refs, tt.segs, segs)
			}
			if got := Render(segs, nil); got != tt.text {
				t.Fatalf("Render round trip = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestRender_ReplacesReferences(t *testing.T) {
	set := []types.Citation{{ID: "S1", URL: "https://a.example"}}
	got := Render(Resolve("x [S1] y [S2]", set), func(c types.Citation) string {
		return "<" + c.URL + ">"
	})
	if got != "x <https://a.example> y [S2]" {
		t.Fatalf("Render = %q", got)
	}
}

func TestFootnotes(t *testing.T) {
	got := Footnotes([]types.Citation{
		{ID: "S1", URL: "https://a.example/x", Title: "A title"},
		{ID: "S2", URL: "https://b.example", Domain: "b.example"},
	})
	want := "[S1] A title <https://a.example/x>\n[S2] b.example <https://b.example>\n"
	if got != want {
		t.Fatalf("Footnotes = %q, want %q", got, want)
	}
}
