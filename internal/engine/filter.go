package engine

import (
	"sort"
	"strings"

	"github.com/livingplaybook/playbook/internal/pkg/query"
)

// TagState is the position of a tag button.
type TagState uint8

const (
	TagAny TagState = iota
	TagYes
	TagNo
)

func (s TagState) String() string {
	switch s {
	case TagYes:
		return "yes"
	case TagNo:
		return "no"
	default:
		return "any"
	}
}

// TagFilter holds the required-present and required-absent tag sets.
type TagFilter struct {
	YesTags map[string]struct{}
	NoTags  map[string]struct{}
}

func NewTagFilter() *TagFilter {
	return &TagFilter{
		YesTags: make(map[string]struct{}),
		NoTags:  make(map[string]struct{}),
	}
}

// ParseTagFilter builds a filter from comma-separated lists such as the
// yesTags=a,b / noTags=c query parameters.
func ParseTagFilter(yes, no string) *TagFilter {
	f := NewTagFilter()
	for _, tag := range splitTags(yes) {
		f.YesTags[tag] = struct{}{}
	}
	for _, tag := range splitTags(no) {
		f.NoTags[tag] = struct{}{}
	}
	return f
}

func splitTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

func (f *TagFilter) Require(tag string) {
	delete(f.NoTags, tag)
	f.YesTags[tag] = struct{}{}
}

func (f *TagFilter) Exclude(tag string) {
	delete(f.YesTags, tag)
	f.NoTags[tag] = struct{}{}
}

func (f *TagFilter) Clear(tag string) {
	delete(f.YesTags, tag)
	delete(f.NoTags, tag)
}

// State reports where tag stands. A tag in both sets reads as TagNo.
func (f *TagFilter) State(tag string) TagState {
	if _, ok := f.NoTags[tag]; ok {
		return TagNo
	}
	if _, ok := f.YesTags[tag]; ok {
		return TagYes
	}
	return TagAny
}

// Toggle cycles tag through any -> yes -> no -> any and returns the new state.
func (f *TagFilter) Toggle(tag string) TagState {
	switch f.State(tag) {
	case TagAny:
		f.Require(tag)
		return TagYes
	case TagYes:
		f.Exclude(tag)
		return TagNo
	default:
		f.Clear(tag)
		return TagAny
	}
}

// Allows reports whether rec has every yes tag and none of the no tags.
// A nil filter allows everything.
func (f *TagFilter) Allows(rec query.Record) bool {
	if f == nil {
		return true
	}
	for tag := range f.YesTags {
		if !rec.HasTag(tag) {
			return false
		}
	}
	for tag := range f.NoTags {
		if rec.HasTag(tag) {
			return false
		}
	}
	return true
}

func (f *TagFilter) Empty() bool {
	return f == nil || (len(f.YesTags) == 0 && len(f.NoTags) == 0)
}

// Yes returns the required tags, sorted.
func (f *TagFilter) Yes() []string { return sortedKeys(f, true) }

// No returns the excluded tags, sorted.
func (f *TagFilter) No() []string { return sortedKeys(f, false) }

func sortedKeys(f *TagFilter, yes bool) []string {
	if f == nil {
		return nil
	}
	set := f.NoTags
	if yes {
		set = f.YesTags
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
