package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Filter selects events for a REQ or COUNT. Every predicate is optional; an
// empty filter matches all events up to the limit.
type Filter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	Since   *int64   `json:"since,omitempty"`
	Until   *int64   `json:"until,omitempty"`
	Search  *string  `json:"search,omitempty"`
	Limit   *int     `json:"limit,omitempty"`

	// Tags maps a tag name (without the leading '#') to the accepted values.
	Tags map[string][]string `json:"-"`
}

// UnmarshalJSON decodes the standard keys into their fields and every other
// key holding an array of strings into Tags. Keys with other value shapes are
// ignored.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode filter: %w", err)
	}

	*f = Filter{}
	for key, val := range raw {
		var err error
		switch key {
		case "ids":
			err = json.Unmarshal(val, &f.IDs)
		case "authors":
			err = json.Unmarshal(val, &f.Authors)
		case "kinds":
			err = json.Unmarshal(val, &f.Kinds)
		case "since":
			err = json.Unmarshal(val, &f.Since)
		case "until":
			err = json.Unmarshal(val, &f.Until)
		case "search":
			err = json.Unmarshal(val, &f.Search)
		case "limit":
			err = json.Unmarshal(val, &f.Limit)
		default:
			var values []string
			if json.Unmarshal(val, &values) != nil {
				continue
			}
			name := TagFilterName(key)
			if name == "" {
				continue
			}
			if f.Tags == nil {
				f.Tags = make(map[string][]string)
			}
			f.Tags[name] = append(f.Tags[name], values...)
		}
		if err != nil {
			return fmt.Errorf("decode filter %q: %w", key, err)
		}
	}
	return nil
}

// MarshalJSON writes tag filters back as "#name" keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if len(f.IDs) > 0 {
		out["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		out["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		out["kinds"] = f.Kinds
	}
	if f.Since != nil {
		out["since"] = *f.Since
	}
	if f.Until != nil {
		out["until"] = *f.Until
	}
	if f.Search != nil {
		out["search"] = *f.Search
	}
	if f.Limit != nil {
		out["limit"] = *f.Limit
	}
	for name, values := range f.Tags {
		out["#"+name] = values
	}
	return json.Marshal(out)
}

// TagNames returns the tag filter names in sorted order.
func (f *Filter) TagNames() []string {
	names := make([]string, 0, len(f.Tags))
	for name := range f.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TagFilterName strips the leading '#' marker from a filter key.
func TagFilterName(key string) string {
	return strings.TrimPrefix(key, "#")
}

// Limits bounds the number of rows a single filter may return.
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits are used when no configuration overrides them.
var DefaultLimits = Limits{Default: 100, Max: 500}

// Clamp resolves a requested limit: absent or non-positive yields Default,
// anything above Max yields Max.
func (l Limits) Clamp(requested *int) int {
	if requested == nil || *requested <= 0 {
		return l.Default
	}
	if l.Max > 0 && *requested > l.Max {
		return l.Max
	}
	return *requested
}
