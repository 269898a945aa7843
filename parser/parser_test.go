package parser

import (
	"testing"
)

// TestParse_Valid tests that well-formed patterns parse.
func TestParse_Valid(t *testing.T) {
	tests := []string{
		"",
		"a",
		"hello",
		"a|b",
		"a|b|c",
		"(a)",
		"(?:ab)+",
		"(?P<word>[a-z]+)",
		"a*b+c?",
		"a*?b+?c??",
		"a{3}",
		"a{2,}",
		"a{2,5}?",
		"[a-z]",
		"[^a-z0-9]",
		"[]a]",
		`[\d\s]`,
		`\d+\.\d+`,
		`\w+@\w+`,
		`^hello$`,
		`\Afoo\Z`,
		`\bword\b`,
		`(a+)+`,
		`(a|b|ab)*`,
		`.*a.*a.*`,
		`(foo)\1`,
		`(?P<x>a)\g<x>`,
		`(?P<x>a)(?P=x)`,
		`(?=ab)a`,
		`(?!x)a`,
		`(?<=a)b`,
		`(?<!a)b`,
		`\x41A`,
		`\p{L}+`,
		`\n\t\r\f\v`,
	}
	for _, pattern := range tests {
		t.Run(pattern, func(t *testing.T) {
			p, err := Parse(pattern, DefaultFlags())
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", pattern, err)
			}
			if p.Source != pattern {
				t.Errorf("Source = %q, want %q", p.Source, pattern)
			}
			if p.Root == nil {
				t.Error("Root is nil")
			}
		})
	}
}

// TestParse_Invalid tests that malformed patterns fail with a positioned
// error.
func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"(",
		")",
		"(a",
		"a)",
		"[a-z",
		"*a",
		"+",
		"a**",
		`\`,
		`(?P<>a)`,
		`(?P<name`,
		`(?<x)`,
		`\2`,
		`(a)\2`,
		`\g<missing>`,
		`a{3,1}`,
		`[z-a]`,
		`\p{Nope}`,
		`^*`,
		`\b+`,
	}
	for _, pattern := range tests {
		t.Run(pattern, func(t *testing.T) {
			_, err := Parse(pattern, DefaultFlags())
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", pattern)
			}
			if _, ok := err.(*ParseError); !ok {
				t.Errorf("error type = %T, want *ParseError", err)
			}
		})
	}
}

// TestParse_Structure spot-checks AST shapes.
func TestParse_Structure(t *testing.T) {
	t.Run("alternation", func(t *testing.T) {
		p, err := Parse("a|b|c", DefaultFlags())
		if err != nil {
			t.Fatal(err)
		}
		alt, ok := p.Root.(*Alt)
		if !ok {
			t.Fatalf("root = %T, want *Alt", p.Root)
		}
		if len(alt.Nodes) != 3 {
			t.Errorf("alternatives = %d, want 3", len(alt.Nodes))
		}
	})

	t.Run("nested repeat", func(t *testing.T) {
		p, err := Parse("(a+)+", DefaultFlags())
		if err != nil {
			t.Fatal(err)
		}
		outer, ok := p.Root.(*Repeat)
		if !ok {
			t.Fatalf("root = %T, want *Repeat", p.Root)
		}
		grp, ok := outer.Node.(*Group)
		if !ok {
			t.Fatalf("outer child = %T, want *Group", outer.Node)
		}
		if !grp.Capturing() || grp.Index != 1 {
			t.Errorf("group index = %d, want capturing 1", grp.Index)
		}
		inner, ok := grp.Node.(*Repeat)
		if !ok {
			t.Fatalf("group child = %T, want *Repeat", grp.Node)
		}
		if inner.Min != 1 || inner.Max != -1 {
			t.Errorf("inner bounds = {%d,%d}, want {1,-1}", inner.Min, inner.Max)
		}
	})

	t.Run("bounds", func(t *testing.T) {
		tests := []struct {
			pattern  string
			min, max int
			greedy   bool
		}{
			{"a*", 0, -1, true},
			{"a+", 1, -1, true},
			{"a?", 0, 1, true},
			{"a{3}", 3, 3, true},
			{"a{2,}", 2, -1, true},
			{"a{2,5}", 2, 5, true},
			{"a{2,5}?", 2, 5, false},
		}
		for _, tt := range tests {
			p, err := Parse(tt.pattern, DefaultFlags())
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.pattern, err)
			}
			r, ok := p.Root.(*Repeat)
			if !ok {
				t.Fatalf("%q root = %T, want *Repeat", tt.pattern, p.Root)
			}
			if r.Min != tt.min || r.Max != tt.max || r.Greedy != tt.greedy {
				t.Errorf("%q = {%d,%d,greedy=%v}, want {%d,%d,greedy=%v}",
					tt.pattern, r.Min, r.Max, r.Greedy, tt.min, tt.max, tt.greedy)
			}
		}
	})

	t.Run("named backref resolves", func(t *testing.T) {
		p, err := Parse(`(?P<x>a+)\g<x>`, DefaultFlags())
		if err != nil {
			t.Fatal(err)
		}
		var br *Backref
		Walk(p.Root, func(n Node) bool {
			if b, ok := n.(*Backref); ok {
				br = b
			}
			return true
		})
		if br == nil {
			t.Fatal("no backref in AST")
		}
		if br.Index != 1 {
			t.Errorf("backref index = %d, want 1", br.Index)
		}
	})

	t.Run("literal brace", func(t *testing.T) {
		p, err := Parse("a{x}", DefaultFlags())
		if err != nil {
			t.Fatalf("a{x} should parse with literal braces: %v", err)
		}
		if _, ok := p.Root.(*Concat); !ok {
			t.Errorf("root = %T, want *Concat", p.Root)
		}
	})
}

// TestParse_Flags tests flag effects baked at parse time.
func TestParse_Flags(t *testing.T) {
	t.Run("ignore case folds literals", func(t *testing.T) {
		flags := Flags{IgnoreCase: true, Unicode: true}
		p, err := Parse("a", flags)
		if err != nil {
			t.Fatal(err)
		}
		cc, ok := p.Root.(*CharClass)
		if !ok {
			t.Fatalf("root = %T, want *CharClass under ignore_case", p.Root)
		}
		if !cc.Set.Contains('a') || !cc.Set.Contains('A') {
			t.Errorf("folded set %v should contain both cases", cc.Set)
		}
	})

	t.Run("dotall widens dot", func(t *testing.T) {
		p, err := Parse(".", Flags{DotAll: true, Unicode: true})
		if err != nil {
			t.Fatal(err)
		}
		dot := p.Root.(*Dot)
		if !dot.CharSet().Contains('\n') {
			t.Error("dotall dot should match newline")
		}
		p2, _ := Parse(".", DefaultFlags())
		if p2.Root.(*Dot).CharSet().Contains('\n') {
			t.Error("plain dot should not match newline")
		}
	})

	t.Run("multiline switches anchors", func(t *testing.T) {
		p, err := Parse("^a$", Flags{Multiline: true, Unicode: true})
		if err != nil {
			t.Fatal(err)
		}
		concat := p.Root.(*Concat)
		if concat.Nodes[0].(*Anchor).AnchorKind != AnchorLineStart {
			t.Error("^ under multiline should be a line anchor")
		}
		if concat.Nodes[2].(*Anchor).AnchorKind != AnchorLineEnd {
			t.Error("$ under multiline should be a line anchor")
		}
	})

	t.Run("flag string", func(t *testing.T) {
		f := Flags{IgnoreCase: true, DotAll: true, Unicode: true}
		if got := f.String(); got != "isu" {
			t.Errorf("String() = %q, want %q", got, "isu")
		}
	})
}

// TestParse_Spans tests that nodes carry source offsets for hotspots.
func TestParse_Spans(t *testing.T) {
	p, err := Parse("ab(c+)d", DefaultFlags())
	if err != nil {
		t.Fatal(err)
	}
	var grp *Group
	Walk(p.Root, func(n Node) bool {
		if g, ok := n.(*Group); ok {
			grp = g
		}
		return true
	})
	if grp == nil {
		t.Fatal("no group")
	}
	sp := grp.Span()
	if got := p.Source[sp.Start:sp.End]; got != "(c+)" {
		t.Errorf("group span text = %q, want %q", got, "(c+)")
	}
}

// TestPredicates tests the gate and exploitability helpers.
func TestPredicates(t *testing.T) {
	tests := []struct {
		pattern      string
		backrefs     bool
		lookaround   bool
		endAnchor    bool
		startAnchor  bool
		continuation bool
		nested       bool
	}{
		{pattern: `^(a+)+$`, endAnchor: true, startAnchor: true, nested: true},
		{pattern: `(a*)*`, nested: true},
		{pattern: `^([^@]+)+@`, startAnchor: true, continuation: true, nested: true},
		{pattern: `(a)\1`, backrefs: true},
		{pattern: `(?=a)b`, lookaround: true},
		{pattern: `a+b`, continuation: true},
		{pattern: `abc`},
		{pattern: `a+\Z`, endAnchor: true},
		{pattern: `.*a.*a.*`, continuation: true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := Parse(tt.pattern, DefaultFlags())
			if err != nil {
				t.Fatal(err)
			}
			if got := HasBackrefs(p.Root); got != tt.backrefs {
				t.Errorf("HasBackrefs = %v, want %v", got, tt.backrefs)
			}
			if got := HasLookaround(p.Root); got != tt.lookaround {
				t.Errorf("HasLookaround = %v, want %v", got, tt.lookaround)
			}
			if got := HasEndAnchor(p.Root, false); got != tt.endAnchor {
				t.Errorf("HasEndAnchor = %v, want %v", got, tt.endAnchor)
			}
			if got := HasStartAnchor(p.Root); got != tt.startAnchor {
				t.Errorf("HasStartAnchor = %v, want %v", got, tt.startAnchor)
			}
			if got := RequiresContinuation(p.Root); got != tt.continuation {
				t.Errorf("RequiresContinuation = %v, want %v", got, tt.continuation)
			}
			if got := NestedQuantifiers(p.Root); got != tt.nested {
				t.Errorf("NestedQuantifiers = %v, want %v", got, tt.nested)
			}
		})
	}
}
