package store

// Corpus is a named bag of notes.
type Corpus struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Workspace is a viewer identity owning queries and access history.
type Workspace struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Note is a text document with a canonical path within its corpus.
type Note struct {
	ID          int64  `json:"id"`
	CorpusID    int64  `json:"corpus"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	ContentHash string `json:"contentHash"`
	Size        int64  `json:"size"`
	Mtime       int64  `json:"mtime"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// NoteRef is the (id, path) projection returned by corpus listings.
type NoteRef struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// Query is a persisted retrieval scope.
type Query struct {
	ID        int64   `json:"id"`
	Viewer    int64   `json:"viewer"`
	Tracked   bool    `json:"tracked"`
	Corpora   []int64 `json:"corpora"`
	CreatedAt int64   `json:"createdAt"`
}

// Access log entry kinds.
const (
	AccessKindNoteRead = 1
)

// ChunkEmbedding pairs a chunk's character position with its vector.
// Seq is implied by slice order.
type ChunkEmbedding struct {
	Pos    int
	Vector []float32
}

// EmbeddingRow is one chunk row plus its vector, addressed to a note.
// Used by the batched embed flush path where a single transaction spans
// chunks of several notes.
type EmbeddingRow struct {
	NoteID int64
	Seq    int
	Pos    int
	Vector []float32
}

// VectorHit is one row from the vector search primitive. The engine does
// not apply corpus or path filters; callers do.
type VectorHit struct {
	EmbeddingID int64
	NoteID      int64
	CorpusID    int64
	Path        string
	Content     string
	ChunkPos    int
	Distance    float64
}

// FTSResult is one row from the full-text search primitive.
type FTSResult struct {
	NoteID   int64   `json:"noteId"`
	CorpusID int64   `json:"corpus"`
	Path     string  `json:"path"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}
