package kongrag

import (
	"time"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/usecase/ingest"
)

// Record is a retrieved chunk. Smaller Distance is closer to the question.
type Record struct {
	Index     int
	LinesFrom int
	LinesTo   int
	Content   string
	Distance  float64
}

// Answer is the model's reply with the context it was given.
type Answer struct {
	Text    string
	Context string
	Sources []Record
}

// IngestResult summarizes one ingestion.
type IngestResult struct {
	Source   string
	Table    string
	Chunks   int
	Stored   int
	Resumed  int
	Tokens   int
	RowCount int
	Duration time.Duration
}

func recordsFromNeighbors(neighbors []domain.Neighbor) []Record {
	out := make([]Record, len(neighbors))
	for i, n := range neighbors {
		out[i] = Record{
			Index:     n.Record.Index,
			LinesFrom: n.Record.LinesFrom,
			LinesTo:   n.Record.LinesTo,
			Content:   n.Record.Content,
			Distance:  n.Distance,
		}
	}
	return out
}

func ingestResultFrom(r ingest.Result) IngestResult {
	return IngestResult{
		Source:   r.Source,
		Table:    r.Table,
		Chunks:   r.Chunks,
		Stored:   r.Stored,
		Resumed:  r.Resumed,
		Tokens:   r.Tokens,
		RowCount: r.RowCount,
		Duration: r.Duration,
	}
}
