package engine

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TagCount is one entry of the tag list.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CatalogStats summarizes the loaded edition.
type CatalogStats struct {
	Version string `json:"version"`
	Games   int    `json:"games"`
	Tags    int    `json:"tags"`
	Digest  string `json:"digest"`
}

// Tags returns the unique trimmed tags with per-tag game counts, sorted.
func (qe *QueryEngine) Tags() []TagCount {
	counts := qe.Catalog().TagCounts()

	tags := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		tags = append(tags, TagCount{Tag: tag, Count: n})
	}

	col := collate.New(language.English)
	sort.Slice(tags, func(i, j int) bool {
		if c := col.CompareString(tags[i].Tag, tags[j].Tag); c != 0 {
			return c < 0
		}
		return tags[i].Tag < tags[j].Tag
	})
	return tags
}

func (qe *QueryEngine) Stats() CatalogStats {
	c := qe.Catalog()
	return CatalogStats{
		Version: c.Version.String(),
		Games:   c.Len(),
		Tags:    len(c.TagCounts()),
		Digest:  c.Digest(),
	}
}
