package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/model"
)

// filterFlags are the flags shared by req and count.
type filterFlags struct {
	raw     string
	ids     []string
	authors []string
	kinds   []int
	tags    []string
	since   int64
	until   int64
	search  string
	limit   int
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.raw, "filter", "", "raw JSON filter (other filter flags are merged into it)")
	fs.StringSliceVar(&f.ids, "ids", nil, "event ids")
	fs.StringSliceVar(&f.authors, "authors", nil, "author public keys")
	fs.IntSliceVar(&f.kinds, "kinds", nil, "event kinds")
	fs.StringArrayVarP(&f.tags, "tag", "t", nil, "tag filter as name=value (repeatable)")
	fs.Int64Var(&f.since, "since", 0, "only events created at or after this unix time")
	fs.Int64Var(&f.until, "until", 0, "only events created at or before this unix time")
	fs.StringVar(&f.search, "search", "", "substring to match in content")
	fs.IntVar(&f.limit, "limit", 0, "maximum number of events (relay default when 0)")
}

// build assembles the filter. Tag values with the same name are OR'ed.
func (f *filterFlags) build() (model.Filter, error) {
	var filter model.Filter
	if f.raw != "" {
		if err := json.Unmarshal([]byte(f.raw), &filter); err != nil {
			return filter, fmt.Errorf("parse --filter: %w", err)
		}
	}
	filter.IDs = append(filter.IDs, f.ids...)
	filter.Authors = append(filter.Authors, f.authors...)
	filter.Kinds = append(filter.Kinds, f.kinds...)
	for _, t := range f.tags {
		name, value, ok := strings.Cut(t, "=")
		if !ok || name == "" {
			return filter, fmt.Errorf("invalid --tag %q (want name=value)", t)
		}
		if filter.Tags == nil {
			filter.Tags = make(map[string][]string)
		}
		filter.Tags[name] = append(filter.Tags[name], value)
	}
	if f.since > 0 {
		filter.Since = &f.since
	}
	if f.until > 0 {
		filter.Until = &f.until
	}
	if f.search != "" {
		filter.Search = &f.search
	}
	if f.limit > 0 {
		filter.Limit = &f.limit
	}
	return filter, nil
}

// parseTags turns name=value[,value...] arguments into event tags.
func parseTags(args []string) (model.Tags, error) {
	tags := model.Tags{}
	for _, a := range args {
		name, rest, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --tag %q (want name=value)", a)
		}
		tag := model.Tag{name}
		tag = append(tag, strings.Split(rest, ",")...)
		tags = append(tags, tag)
	}
	return tags, nil
}
