package model

import "testing"

func TestAppendQuoted(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"plain", `"plain"`},
		{`say "hi"`, `"say \"hi\""`},
		{`back\slash`, `"back\\slash"`},
		{"a\nb\rc\td", `"a\nb\rc\td"`},
		{"\b\f", `"\b\f"`},
		{"\x00\x1f", `"\u0000\u001f"`},
		{"<&>   é", "\"<&>   é\""},
		{"\x7f", "\"\x7f\""},
	} {
		if got := string(AppendQuoted(nil, tc.in)); got != tc.want {
			t.Errorf("AppendQuoted(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestTags_Canonical(t *testing.T) {
	for _, tc := range []struct {
		tags Tags
		want string
	}{
		{nil, `[]`},
		{Tags{}, `[]`},
		{Tags{{}}, `[[]]`},
		{Tags{{"e", "x"}, {"t", "a<b"}}, `[["e","x"],["t","a<b"]]`},
	} {
		if got := tc.tags.Canonical(); got != tc.want {
			t.Errorf("Canonical(%v) = %s, want %s", tc.tags, got, tc.want)
		}
	}
}

func TestEvent_Serialize(t *testing.T) {
	e := &Event{
		PubKey:    "pk",
		CreatedAt: 1700000000,
		Kind:      1,
		Tags:      Tags{{"p", "abc"}},
		Content:   "line\n\"quoted\"",
		ID:        "ignored",
		Sig:       "ignored",
	}
	want := `[0,"pk",1700000000,1,[["p","abc"]],"line\n\"quoted\""]`
	if got := string(e.Serialize()); got != want {
		t.Errorf("Serialize() = %s\nwant          %s", got, want)
	}
}
