// Package index builds the vector index for the criteria catalog. A
// rebuild is destructive: the collection is dropped and recreated so the
// index never mixes two catalog versions.
package index

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
)

// Document is one unit of indexable text derived from the catalog:
// either a full entry or a category introduction.
type Document struct {
	ID        string
	EntryID   string
	DocType   string
	Title     string
	Category  string
	Content   string
	SourceURL string
	Position  int
}

// PointID derives a deterministic UUID for the document so reindexing
// the same catalog produces the same point ids.
func PointID(docType, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%s", docType, id))).String()
}

// BuildDocs produces one document per entry (title, raw text, and
// plain-language summary concatenated) and one per category intro.
func BuildDocs(cat *catalog.Catalog) []Document {
	entries := cat.All()
	intros := cat.Intros()
	docs := make([]Document, 0, len(entries)+len(intros))

	for pos, e := range entries {
		parts := []string{e.Title, e.RawText}
		if e.Summary != "" {
			parts = append(parts, e.Summary)
		}
		docs = append(docs, Document{
			ID:        PointID(semantic.DocTypeEntry, e.ID),
			EntryID:   e.ID,
			DocType:   semantic.DocTypeEntry,
			Title:     e.Title,
			Category:  e.Category,
			Content:   strings.Join(parts, "\n\n"),
			SourceURL: e.SourceURL,
			Position:  pos,
		})
	}
	for pos, in := range intros {
		docs = append(docs, Document{
			ID:        PointID(semantic.DocTypeCategoryIntro, in.ID),
			EntryID:   in.ID,
			DocType:   semantic.DocTypeCategoryIntro,
			Title:     in.Category + " introduction",
			Category:  in.Category,
			Content:   in.IntroText,
			SourceURL: in.SourceURL,
			Position:  len(entries) + pos,
		})
	}
	return docs
}

func (d Document) record(embedding []float32) semantic.VectorRecord {
	return semantic.VectorRecord{
		ID:        d.ID,
		Embedding: embedding,
		Payload: map[string]any{
			"entry_id":   d.EntryID,
			"doc_type":   d.DocType,
			"title":      d.Title,
			"category":   d.Category,
			"content":    d.Content,
			"source_url": d.SourceURL,
			"position":   d.Position,
		},
	}
}
