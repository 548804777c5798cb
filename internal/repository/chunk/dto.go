package chunk

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/kongrag/internal/db"
	"github.com/kailas-cloud/kongrag/internal/domain"
)

// recordToHash converts a Record to HSET fields. The vector is packed binary.
func recordToHash(rec domain.Record) map[string]string {
	return map[string]string{
		domain.FieldIndex:     strconv.Itoa(rec.Index),
		domain.FieldVector:    string(db.EncodeVector(rec.Vector)),
		domain.FieldLinesFrom: strconv.Itoa(rec.LinesFrom),
		domain.FieldLinesTo:   strconv.Itoa(rec.LinesTo),
		domain.FieldContent:   rec.Content,
	}
}

// recordFromHash hydrates a Record from FT.SEARCH return fields.
func recordFromHash(m map[string]string) (domain.Record, error) {
	var (
		rec domain.Record
		err error
	)
	if rec.Index, err = atoi(m, domain.FieldIndex); err != nil {
		return domain.Record{}, err
	}
	if rec.LinesFrom, err = atoi(m, domain.FieldLinesFrom); err != nil {
		return domain.Record{}, err
	}
	if rec.LinesTo, err = atoi(m, domain.FieldLinesTo); err != nil {
		return domain.Record{}, err
	}
	if raw, ok := m[domain.FieldVector]; ok {
		if rec.Vector, err = db.DecodeVector([]byte(raw)); err != nil {
			return domain.Record{}, fmt.Errorf("field %s: %w", domain.FieldVector, err)
		}
	}
	rec.Content = m[domain.FieldContent]
	return rec, nil
}

func atoi(m map[string]string, field string) (int, error) {
	v, ok := m[field]
	if !ok {
		return 0, fmt.Errorf("field %s is missing", field)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return n, nil
}
