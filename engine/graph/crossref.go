package graph

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
)

// CrossRefStore persists catalog entries as Entry nodes and the
// REFERS_TO edges between them.
type CrossRefStore struct {
	driver neo4j.DriverWithContext
	opener SessionOpener
}

// New connects to Neo4j with basic auth.
func New(uri, user, pass string) (*CrossRefStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: connect: %w", err)
	}
	return &CrossRefStore{driver: driver, opener: &driverOpener{driver: driver}}, nil
}

// NewWithOpener creates a store over a custom session opener.
func NewWithOpener(opener SessionOpener) *CrossRefStore {
	return &CrossRefStore{opener: opener}
}

// Close shuts down the underlying driver, if any.
func (s *CrossRefStore) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// SaveEntry creates or updates one Entry node.
func (s *CrossRefStore) SaveEntry(ctx context.Context, ref catalog.Ref) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (e:Entry {id: $id}) SET e.title = $title, e.category = $category`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":       ref.ID,
		"title":    ref.Title,
		"category": ref.Category,
	})
	if err != nil {
		return fmt.Errorf("graph: save entry %s: %w", ref.ID, err)
	}
	return nil
}

// SaveRef records that one entry's text refers to another.
func (s *CrossRefStore) SaveRef(ctx context.Context, fromID, toID string) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (a:Entry {id: $from}), (b:Entry {id: $to})
	           MERGE (a)-[:REFERS_TO]->(b)`
	_, err := sess.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return fmt.Errorf("graph: save ref %s->%s: %w", fromID, toID, err)
	}
	return nil
}

// Related returns entries connected to the given entry by REFERS_TO in
// either direction, capped at limit.
func (s *CrossRefStore) Related(ctx context.Context, id string, limit int) ([]catalog.Ref, error) {
	if limit <= 0 {
		limit = 5
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (a:Entry {id: $id})-[:REFERS_TO]-(b:Entry)
	           RETURN DISTINCT b LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": id, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("graph: related %s: %w", id, err)
	}

	var refs []catalog.Ref
	for result.Next(ctx) {
		val, ok := result.Record().Get("b")
		if !ok {
			continue
		}
		node, ok := val.(dbtype.Node)
		if !ok {
			continue
		}
		refs = append(refs, refFromProps(node.Props))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: related %s: %w", id, err)
	}
	return refs, nil
}

// crossRefRe matches listing numbers cited inside an entry's raw text.
var crossRefRe = regexp.MustCompile(`\b(\d{1,2}\.\d{2})\b`)

// Seed writes every catalog entry as a node, then scans each entry's
// raw text for citations of other entries and records REFERS_TO edges,
// all in one transaction.
func (s *CrossRefStore) Seed(ctx context.Context, cat *catalog.Catalog) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, ref := range cat.Refs() {
			cypher := `MERGE (e:Entry {id: $id}) SET e.title = $title, e.category = $category`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":       ref.ID,
				"title":    ref.Title,
				"category": ref.Category,
			}); err != nil {
				return nil, err
			}
		}
		for _, entry := range cat.All() {
			for _, cited := range crossRefRe.FindAllString(entry.RawText, -1) {
				if cited == entry.ID {
					continue
				}
				if _, err := cat.Lookup(cited); err != nil {
					continue
				}
				cypher := `MATCH (a:Entry {id: $from}), (b:Entry {id: $to})
				           MERGE (a)-[:REFERS_TO]->(b)`
				if _, err := tx.Run(ctx, cypher, map[string]any{
					"from": entry.ID,
					"to":   cited,
				}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: seed: %w", err)
	}
	return nil
}

func refFromProps(props map[string]any) catalog.Ref {
	return catalog.Ref{
		ID:       strProp(props, "id"),
		Title:    strProp(props, "title"),
		Category: strProp(props, "category"),
	}
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
