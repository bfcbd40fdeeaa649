package retrieve

import "fmt"

// EmptyIndexError means retrieval ran before any index snapshot was
// published. This is an ops error, not a user error.
type EmptyIndexError struct{}

func (e *EmptyIndexError) Error() string {
	return "retrieve: no index snapshot published; run the indexer first"
}

// ModelMismatchError means the query-time embedder differs from the one
// recorded at index time. Mixing embedding spaces silently degrades
// ranking, so the query is rejected instead.
type ModelMismatchError struct {
	IndexModel string
	QueryModel string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("retrieve: index built with embedding model %q but query uses %q", e.IndexModel, e.QueryModel)
}
