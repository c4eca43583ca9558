package catalog

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

// SortByName returns a copy of the catalog with games ordered by display
// name (byte order, stable).
func (c *Catalog) SortByName() (*Catalog, error) {
	records := make([]*Record, len(c.records))
	copy(records, c.records)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return c.derive(records)
}

// Mismatch is a game whose uid disagrees with the main catalog.
type Mismatch struct {
	Name     string
	UID      int64
	Expected int64
}

func (m Mismatch) String() string {
	if m.Expected < 0 {
		return fmt.Sprintf("%s: uid %d, not found in main catalog", m.Name, m.UID)
	}
	return fmt.Sprintf("%s: uid %d, main catalog has %d", m.Name, m.UID, m.Expected)
}

// UIDReport summarizes an AssignUIDs run.
type UIDReport struct {
	Assigned   int
	Mismatches []Mismatch
}

// AssignUIDs fills in missing uid fields from main, matching games by
// display name. Games unknown to main get -1. Games that already carry a
// uid are left alone and reported when they disagree with main. Nameless
// games are skipped.
func (c *Catalog) AssignUIDs(main *Catalog) (*Catalog, UIDReport, error) {
	known := make(map[string]int64, main.Len())
	for _, rec := range main.records {
		if rec.Name != "" {
			known[rec.Name] = rec.UID
		}
	}

	var (
		p      fastjson.Parser
		arena  fastjson.Arena
		report UIDReport
	)

	records := make([]*Record, len(c.records))
	for i, rec := range c.records {
		records[i] = rec
		if rec.Name == "" {
			continue
		}

		expected, ok := known[rec.Name]
		if !ok {
			expected = -1
		}

		if rec.hasUID {
			if rec.UID != expected {
				report.Mismatches = append(report.Mismatches, Mismatch{Name: rec.Name, UID: rec.UID, Expected: expected})
			}
			continue
		}

		v, err := p.ParseBytes(rec.raw)
		if err != nil {
			return nil, report, errors.Wrapf(err, "failed to reparse %q", rec.Name)
		}
		arena.Reset()
		v.Set("uid", arena.NewNumberString(strconv.FormatInt(expected, 10)))

		records[i] = newRecord(v, rec.UID)
		report.Assigned++
	}

	out, err := c.derive(records)
	if err != nil {
		return nil, report, err
	}
	return out, report, nil
}

// CopyField copies key from the same-named games of src, overwriting
// what c has. It returns the number of games updated.
func (c *Catalog) CopyField(src *Catalog, key string) (*Catalog, int, error) {
	values := make(map[string][]byte, src.Len())
	for _, rec := range src.records {
		if f, ok := rec.Field(key); ok {
			values[rec.Name] = f.Raw
		}
	}

	var (
		p       fastjson.Parser
		vp      fastjson.Parser
		updated int
	)

	records := make([]*Record, len(c.records))
	for i, rec := range c.records {
		records[i] = rec
		raw, ok := values[rec.Name]
		if !ok {
			continue
		}

		v, err := p.ParseBytes(rec.raw)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "failed to reparse %q", rec.Name)
		}
		val, err := vp.ParseBytes(raw)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "failed to parse %s of %q", key, rec.Name)
		}
		v.Set(key, val)

		records[i] = newRecord(v, rec.UID)
		updated++
	}

	out, err := c.derive(records)
	if err != nil {
		return nil, 0, err
	}
	return out, updated, nil
}
