package etl

import (
	"github.com/BartekS5/dailyetl/pkg/models"
)

// Transformer turns cleaned records into index documents.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// ToDocument builds one document whose fields are exactly the record's
// key/value pairs, in column order.
func (t *Transformer) ToDocument(rec models.Record) models.Document {
	fields := make(models.Record, len(rec))
	copy(fields, rec)
	return models.Document{Fields: fields}
}

// ToDocuments converts every row of a cleaned table.
func (t *Transformer) ToDocuments(table *models.Table) []models.Document {
	recs := table.Records()
	docs := make([]models.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, t.ToDocument(rec))
	}
	return docs
}
