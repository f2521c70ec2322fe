package markup

import (
	"testing"

	"github.com/quirelab/quire/core/doc"
)

func TestCommentAdjacencyAssociation(t *testing.T) {
	t.Run("directly adjacent attaches", func(t *testing.T) {
		inlines := parseOne(t, "{==x==}{>>n<<}")
		if len(inlines) != 1 {
			t.Fatalf("got %d inlines, want 1: %#v", len(inlines), inlines)
		}
		m := annOf(t, inlines[0], doc.KindMarked)
		if m.Comment != "n" {
			t.Errorf("attached comment = %q, want %q", m.Comment, "n")
		}
	})

	t.Run("whitespace between still attaches", func(t *testing.T) {
		inlines := parseOne(t, "{==x==} {>>n<<}")
		m := annOf(t, inlines[0], doc.KindMarked)
		if m.Comment != "n" {
			t.Errorf("attached comment = %q, want %q", m.Comment, "n")
		}
		// The whitespace survives as text.
		if got := doc.PlainText(inlines); got != "x " {
			t.Errorf("plain text = %q, want %q", got, "x ")
		}
	})

	t.Run("non-whitespace between forces indicator", func(t *testing.T) {
		inlines := parseOne(t, "{==x==}y{>>n<<}")
		if len(inlines) != 3 {
			t.Fatalf("got %d inlines, want 3: %#v", len(inlines), inlines)
		}
		m := annOf(t, inlines[0], doc.KindMarked)
		if m.Comment != "" {
			t.Errorf("comment wrongly attached: %q", m.Comment)
		}
		ind := annOf(t, inlines[2], doc.KindIndicator)
		if ind.Comment != "n" {
			t.Errorf("indicator text = %q, want %q", ind.Comment, "n")
		}
	})

	t.Run("empty comment produces nothing", func(t *testing.T) {
		inlines := parseOne(t, "{==x==}{>><<}")
		if len(inlines) != 1 {
			t.Fatalf("got %d inlines, want 1: %#v", len(inlines), inlines)
		}
		m := annOf(t, inlines[0], doc.KindMarked)
		if m.Comment != "" {
			t.Errorf("empty comment attached text %q", m.Comment)
		}
	})
}

func TestStackedCommentsConcatenate(t *testing.T) {
	inlines := parseOne(t, "{++add++}{>>first<<}{>>second<<}")
	a := annOf(t, inlines[0], doc.KindAddition)
	if a.Comment != "first\nsecond" {
		t.Errorf("stacked comment = %q, want %q", a.Comment, "first\nsecond")
	}
}

func TestCommentAttachesToFormatHighlight(t *testing.T) {
	inlines := parseOne(t, "==hot=={>>check this<<}")
	h, ok := inlines[0].(*doc.Highlight)
	if !ok {
		t.Fatalf("inline is %T, want *doc.Highlight", inlines[0])
	}
	if h.Comment != "check this" {
		t.Errorf("comment = %q, want %q", h.Comment, "check this")
	}
}

func TestCommentAttachesToDeletionAndSubstitution(t *testing.T) {
	inlines := parseOne(t, "{--x--}{>>why<<} and {~~a~>b~~}{>>how<<}")
	d := annOf(t, inlines[0], doc.KindDeletion)
	if d.Comment != "why" {
		t.Errorf("deletion comment = %q, want %q", d.Comment, "why")
	}
	s := annOf(t, inlines[2], doc.KindSubstitution)
	if s.Comment != "how" {
		t.Errorf("substitution comment = %q, want %q", s.Comment, "how")
	}
}

func TestOverlappingRanges(t *testing.T) {
	source := "{#1}a {#2}b{/1}c{/2}{#1>>first note<<}{#2>>second note<<}"
	inlines := parseOne(t, source)

	ranges := Ranges(inlines)
	if len(ranges) != 2 {
		t.Fatalf("got %d ranges, want 2: %#v", len(ranges), ranges)
	}

	byID := map[string]Range{}
	for _, r := range ranges {
		byID[r.ID] = r
	}

	r1, ok := byID["1"]
	if !ok {
		t.Fatal("range 1 missing")
	}
	if r1.Text != "a b" {
		t.Errorf("range 1 span = %q, want %q", r1.Text, "a b")
	}
	if r1.Comment != "first note" {
		t.Errorf("range 1 comment = %q, want %q", r1.Comment, "first note")
	}

	r2, ok := byID["2"]
	if !ok {
		t.Fatal("range 2 missing")
	}
	if r2.Text != "bc" {
		t.Errorf("range 2 span = %q, want %q", r2.Text, "bc")
	}
	if r2.Comment != "second note" {
		t.Errorf("range 2 comment = %q, want %q", r2.Comment, "second note")
	}
}

func TestRangePairingIsByIdentifierNotNesting(t *testing.T) {
	// Spans cross without nesting; both must resolve independently.
	inlines := parseOne(t, "{#a}one {#b}two{/a}three{/b}{#a>>A<<}{#b>>B<<}")

	var rangeNodes, endNodes int
	for _, in := range inlines {
		if a, ok := in.(*doc.Annotation); ok {
			switch a.Kind {
			case doc.KindRange:
				rangeNodes++
			case doc.KindRangeEnd:
				endNodes++
			}
		}
	}
	if rangeNodes != 2 || endNodes != 2 {
		t.Errorf("got %d range starts and %d ends, want 2 and 2", rangeNodes, endNodes)
	}
}

func TestUnmatchedRangeMarkersDegradeToLiteral(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"start without end", "{#9}text", "{#9}text"},
		{"end without start", "text{/9}", "text{/9}"},
		{"pair without comment body", "{#9}text{/9}", "{#9}text{/9}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inlines := parseOne(t, tt.source)
			if got := doc.PlainText(inlines); got != tt.want {
				t.Errorf("parse(%q) plain = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestIDCommentWithoutMarkersBecomesIndicator(t *testing.T) {
	inlines := parseOne(t, "text {#5>>orphan<<}")
	if len(inlines) != 2 {
		t.Fatalf("got %d inlines, want 2: %#v", len(inlines), inlines)
	}
	ind := annOf(t, inlines[1], doc.KindIndicator)
	if ind.Comment != "orphan" {
		t.Errorf("indicator = %q, want %q", ind.Comment, "orphan")
	}
}

func TestResolverInsideContainers(t *testing.T) {
	inlines := parseOne(t, "**{--cut--}{>>why<<}**")
	b := inlines[0].(*doc.Bold)
	del := annOf(t, b.Inlines[0], doc.KindDeletion)
	if del.Comment != "why" {
		t.Errorf("nested association failed: comment = %q", del.Comment)
	}
}
