package domain

// Document is a loaded source text, identified by its path.
type Document struct {
	Source  string
	Content string
}

// Chunk is a contiguous segment of a Document.
// LinesFrom and LinesTo are 1-based and inclusive.
type Chunk struct {
	Index     int
	Content   string
	LinesFrom int
	LinesTo   int
}

// Record is the persisted unit of the vector store, one per Chunk.
type Record struct {
	Index     int
	Vector    []float32
	LinesFrom int
	LinesTo   int
	Content   string
}

// NewRecord builds a Record from a chunk and its embedding.
func NewRecord(c Chunk, vector []float32) Record {
	return Record{
		Index:     c.Index,
		Vector:    vector,
		LinesFrom: c.LinesFrom,
		LinesTo:   c.LinesTo,
		Content:   c.Content,
	}
}

// Neighbor is a Record ranked by distance to a query vector (smaller is closer).
type Neighbor struct {
	Record   Record
	Distance float64
}
