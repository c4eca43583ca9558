package catalog

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/blake2b"

	"github.com/livingplaybook/playbook/internal/storage"
)

// Version is the playbook edition stamp.
type Version struct {
	Year  int `json:"year"`
	Major int `json:"major"`
	Minor int `json:"minor"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Year, v.Major, v.Minor)
}

type topField struct {
	key string
	raw []byte
}

// Catalog is an immutable, loaded playbook document.
type Catalog struct {
	Version Version

	records  []*Record
	top      []topField
	byAnchor map[string]*Record
	byAlias  map[string]*Record
	digest   string
}

// Load parses a playbook document: {"version": {...}, "games": [...]}.
// Games that are not objects are skipped.
func Load(data []byte) (*Catalog, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}

	obj, err := v.Object()
	if err != nil {
		return nil, errors.Wrap(err, "catalog is not a JSON object")
	}

	games := v.Get("games")
	if games == nil || games.Type() != fastjson.TypeArray {
		return nil, errors.New("catalog has no games array")
	}

	c := &Catalog{}
	obj.Visit(func(key []byte, val *fastjson.Value) {
		c.top = append(c.top, topField{key: string(key), raw: val.MarshalTo(nil)})
	})

	if ver := v.Get("version"); ver != nil {
		c.Version = Version{
			Year:  ver.GetInt("year"),
			Major: ver.GetInt("major"),
			Minor: ver.GetInt("minor"),
		}
	}

	arr, _ := games.Array()
	records := make([]*Record, 0, len(arr))
	for i, g := range arr {
		if rec := newRecord(g, int64(i)); rec != nil {
			records = append(records, rec)
		}
	}

	c.setRecords(records)
	c.digest = digest(data)
	return c, nil
}

// LoadFile reads a catalog from disk; zstd-compressed files are accepted.
func LoadFile(path string) (*Catalog, error) {
	data, err := storage.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Load(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	return c, nil
}

// newRecord builds a Record from one game value; pos is its index in the games array.
func newRecord(v *fastjson.Value, pos int64) *Record {
	obj, err := v.Object()
	if err != nil {
		return nil
	}

	rec := &Record{UID: pos, raw: v.MarshalTo(nil)}
	obj.Visit(func(key []byte, val *fastjson.Value) {
		f := Field{Key: string(key), Raw: val.MarshalTo(nil)}

		switch val.Type() {
		case fastjson.TypeString:
			f.Kind = FieldString
			f.Text = string(val.GetStringBytes())
		case fastjson.TypeArray:
			f.Kind = FieldArray
			items, _ := val.Array()
			for _, item := range items {
				if item.Type() == fastjson.TypeString {
					f.Values = append(f.Values, string(item.GetStringBytes()))
				}
			}
		case fastjson.TypeNumber:
			f.Kind = FieldNumber
		}

		rec.Fields = append(rec.Fields, f)
	})

	if u := v.Get("uid"); u != nil && u.Type() == fastjson.TypeNumber {
		if n, err := u.Int64(); err == nil {
			rec.UID = n
			rec.hasUID = true
		}
	}

	if f, ok := rec.Field("gameName"); ok && f.Kind == FieldString {
		rec.Name = f.Text
	} else if f, ok := rec.Field("name"); ok && f.Kind == FieldString {
		rec.Name = f.Text
	}
	rec.Anchor = AnchorName(rec.Name)

	if f, ok := rec.Field("tags"); ok {
		rec.Tags = f.Values
	}
	if f, ok := rec.Field("aliases"); ok {
		for _, alias := range f.Values {
			rec.AliasAnchors = append(rec.AliasAnchors, AnchorName(alias))
		}
	}

	return rec
}

func (c *Catalog) setRecords(records []*Record) {
	c.records = records
	c.byAnchor = make(map[string]*Record, len(records))
	c.byAlias = make(map[string]*Record)

	for _, rec := range records {
		if _, ok := c.byAnchor[rec.Anchor]; !ok {
			c.byAnchor[rec.Anchor] = rec
		}
		for _, alias := range rec.AliasAnchors {
			if _, ok := c.byAlias[alias]; !ok {
				c.byAlias[alias] = rec
			}
		}
	}
}

// Records returns the games in catalog order. The slice must not be modified.
func (c *Catalog) Records() []*Record { return c.records }

// Len returns the number of games.
func (c *Catalog) Len() int { return len(c.records) }

// Digest is the hex BLAKE2b-256 of the document the catalog was built from.
func (c *Catalog) Digest() string { return c.digest }

// ByName returns the first game with exactly this display name.
func (c *Catalog) ByName(name string) (*Record, bool) {
	for _, rec := range c.records {
		if rec.Name == name {
			return rec, true
		}
	}
	return nil, false
}

// Lookup resolves "foo" or "id:foo" (any case) to a game by anchor, then by alias anchor.
func (c *Catalog) Lookup(term string) (*Record, bool) {
	key := strings.ToLower(strings.TrimSpace(term))
	key = strings.TrimPrefix(key, "id:")
	if key == "" {
		return nil, false
	}
	if rec, ok := c.byAnchor[key]; ok {
		return rec, true
	}
	rec, ok := c.byAlias[key]
	return rec, ok
}

// TagCounts returns each trimmed tag with the number of games carrying it.
func (c *Catalog) TagCounts() map[string]int {
	counts := make(map[string]int)
	for _, rec := range c.records {
		seen := make(map[string]bool, len(rec.Tags))
		for _, tag := range rec.Tags {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			counts[tag]++
		}
	}
	return counts
}

// Export re-emits the document with 2-space indentation. Derived anchors
// are never part of a record, so the output matches the source schema.
func (c *Catalog) Export() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	wroteGames := false
	for i, f := range c.top {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, f.key)
		if f.key == "games" {
			c.writeGames(&buf)
			wroteGames = true
			continue
		}
		buf.Write(f.raw)
	}
	if !wroteGames {
		if len(c.top) > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, "games")
		c.writeGames(&buf)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, errors.Wrap(err, "failed to indent export")
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func (c *Catalog) writeGames(buf *bytes.Buffer) {
	buf.WriteByte('[')
	for i, rec := range c.records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(rec.raw)
	}
	buf.WriteByte(']')
}

func writeKey(buf *bytes.Buffer, key string) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
}

// derive builds a new catalog sharing c's top-level fields but holding records.
func (c *Catalog) derive(records []*Record) (*Catalog, error) {
	out := &Catalog{Version: c.Version, top: c.top}
	out.setRecords(records)

	data, err := out.Export()
	if err != nil {
		return nil, err
	}
	out.digest = digest(data)
	return out, nil
}

func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
