package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Catalog is the validated, read-only rule set for a serving process. It is
// built once from the ingestion output and replaced wholesale on update;
// nothing mutates it in place.
type Catalog struct {
	entries  []Entry
	intros   []CategoryIntro
	byID     map[string]int // entry id -> position in entries
	introsBy map[string]CategoryIntro
}

// New builds a Catalog from pre-ingested entries and category intros,
// preserving insertion order. It returns a SchemaError if any entry violates
// the structural invariants.
func New(entries []Entry, intros []CategoryIntro) (*Catalog, error) {
	c := &Catalog{
		entries:  make([]Entry, 0, len(entries)),
		intros:   make([]CategoryIntro, 0, len(intros)),
		byID:     make(map[string]int, len(entries)),
		introsBy: make(map[string]CategoryIntro, len(intros)),
	}

	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, &SchemaError{EntryID: e.ID, Wrapped: ErrDuplicateID}
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	for _, in := range intros {
		c.intros = append(c.intros, in)
		c.introsBy[in.Category] = in
	}

	return c, nil
}

// LoadFiles reads the entries and intros JSON files produced by ingestion
// and builds a validated Catalog.
func LoadFiles(entriesPath, introsPath string) (*Catalog, error) {
	entries, err := readJSON[[]Entry](entriesPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: read entries: %w", err)
	}
	var intros []CategoryIntro
	if introsPath != "" {
		intros, err = readJSON[[]CategoryIntro](introsPath)
		if err != nil {
			return nil, fmt.Errorf("catalog: read intros: %w", err)
		}
	}
	return New(entries, intros)
}

func readJSON[T any](path string) (T, error) {
	var v T
	f, err := os.Open(path)
	if err != nil {
		return v, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&v); err != nil {
		return v, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

// Decode builds a Catalog from a single JSON document such as
// {"entries": [...], "intros": [...]}.
func Decode(r io.Reader) (*Catalog, error) {
	var doc struct {
		Entries []Entry         `json:"entries"`
		Intros  []CategoryIntro `json:"intros"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(doc.Entries, doc.Intros)
}

// Lookup returns the entry with the given id, or a NotFoundError.
func (c *Catalog) Lookup(id string) (Entry, error) {
	pos, ok := c.byID[id]
	if !ok {
		return Entry{}, &NotFoundError{ID: id}
	}
	return c.entries[pos], nil
}

// Position returns the insertion position of an entry id, used as the
// deterministic tie-break for equal retrieval scores. Unknown ids sort last.
func (c *Catalog) Position(id string) int {
	if pos, ok := c.byID[id]; ok {
		return pos
	}
	return len(c.entries)
}

// All returns every entry in insertion order.
func (c *Catalog) All() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Refs returns {id, title, category} for every entry in insertion order.
func (c *Catalog) Refs() []Ref {
	refs := make([]Ref, len(c.entries))
	for i, e := range c.entries {
		refs[i] = Ref{ID: e.ID, Title: e.Title, Category: e.Category}
	}
	return refs
}

// Intros returns every category introduction in insertion order.
func (c *Catalog) Intros() []CategoryIntro {
	out := make([]CategoryIntro, len(c.intros))
	copy(out, c.intros)
	return out
}

// IntroFor returns the introduction for a category, if one exists.
func (c *Catalog) IntroFor(category string) (CategoryIntro, bool) {
	in, ok := c.introsBy[category]
	return in, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }
