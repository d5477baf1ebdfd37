// Package vectorstore defines the similarity search used for retrieval augmentation.
package vectorstore

import "context"

// VectorStore performs similarity search over embedded passages.
type VectorStore interface {
	// Search returns at most limit passages closest to vector.
	Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]SearchResult, error)

	// Close releases any resources held by the vector store.
	Close() error
}

// SearchFilter narrows a search.
type SearchFilter struct {
	// SourceIDs restricts results to these sources. SourceID is used when it is empty.
	SourceIDs []string
	SourceID  string

	// Metadata requires exact payload matches.
	Metadata map[string]any

	// MinScore drops results scoring below it (0.0-1.0).
	MinScore float32
}

// Sources returns the source ids the filter restricts to.
func (f SearchFilter) Sources() []string {
	if len(f.SourceIDs) > 0 {
		return f.SourceIDs
	}
	if f.SourceID != "" {
		return []string{f.SourceID}
	}
	return nil
}

// SearchResult is one passage returned by a search.
type SearchResult struct {
	ID         string
	Score      float32
	Content    string
	SourceID   string
	DocumentID string
	Metadata   map[string]any
}
