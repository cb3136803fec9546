package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFilter_UnmarshalJSON(t *testing.T) {
	var f Filter
	data := `{"ids":["a"],"authors":["pk"],"kinds":[1,4],"since":10,"until":20,"search":"hi","limit":5,"#e":["x","y"],"#p":["z"],"bogus":42}`
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.IDs, []string{"a"}) || !reflect.DeepEqual(f.Kinds, []int{1, 4}) {
		t.Errorf("ids/kinds = %v/%v", f.IDs, f.Kinds)
	}
	if *f.Since != 10 || *f.Until != 20 || *f.Search != "hi" || *f.Limit != 5 {
		t.Errorf("scalars = %d %d %q %d", *f.Since, *f.Until, *f.Search, *f.Limit)
	}
	want := map[string][]string{"e": {"x", "y"}, "p": {"z"}}
	if !reflect.DeepEqual(f.Tags, want) {
		t.Errorf("Tags = %v, want %v", f.Tags, want)
	}
	if names := f.TagNames(); !reflect.DeepEqual(names, []string{"e", "p"}) {
		t.Errorf("TagNames = %v", names)
	}
}

func TestFilter_UnmarshalJSON_Errors(t *testing.T) {
	for _, data := range []string{`[]`, `{"kinds":"one"}`, `{"limit":"x"}`} {
		var f Filter
		if err := json.Unmarshal([]byte(data), &f); err == nil {
			t.Errorf("Unmarshal(%s) expected error", data)
		}
	}
}

func TestFilter_UnmarshalJSON_Empty(t *testing.T) {
	var f Filter
	if err := json.Unmarshal([]byte(`{}`), &f); err != nil {
		t.Fatal(err)
	}
	if f.Tags != nil || f.Limit != nil || len(f.TagNames()) != 0 {
		t.Errorf("empty filter decoded as %+v", f)
	}
}

func TestFilter_MarshalJSON(t *testing.T) {
	limit := 3
	f := Filter{Kinds: []int{1}, Limit: &limit, Tags: map[string][]string{"t": {"go"}}}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"#t":["go"],"kinds":[1],"limit":3}` {
		t.Errorf("Marshal = %s", data)
	}

	var back Filter
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, f) {
		t.Errorf("round trip = %+v, want %+v", back, f)
	}
}

func TestLimits_Clamp(t *testing.T) {
	l := Limits{Default: 100, Max: 500}
	ptr := func(n int) *int { return &n }
	for _, tc := range []struct {
		in   *int
		want int
	}{
		{nil, 100},
		{ptr(0), 100},
		{ptr(-3), 100},
		{ptr(10), 10},
		{ptr(500), 500},
		{ptr(501), 500},
	} {
		if got := l.Clamp(tc.in); got != tc.want {
			t.Errorf("Clamp(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := (Limits{Default: 1}).Clamp(ptr(10000)); got != 10000 {
		t.Errorf("unbounded Clamp = %d", got)
	}
}
