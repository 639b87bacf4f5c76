package etl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/pkg/database"
	"github.com/BartekS5/dailyetl/pkg/models"
)

// ElasticIndex writes documents to Elasticsearch with a single _bulk
// request. Documents carry no _id, so Elasticsearch generates one and a
// repeated run adds a second copy of every document.
type ElasticIndex struct {
	Config config.IndexConfig
}

func NewElasticIndex(cfg config.IndexConfig) *ElasticIndex {
	return &ElasticIndex{Config: cfg}
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	Status int `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

func (e *ElasticIndex) BulkIndex(ctx context.Context, index string, docs []models.Document) (int, error) {
	body, err := encodeBulk(index, docs)
	if err != nil {
		return 0, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	defer transport.CloseIdleConnections()

	client, err := database.NewElasticsearch(database.ElasticOptions{
		Address:   e.Config.Address(),
		Username:  e.Config.Username,
		Password:  e.Config.Password,
		Transport: transport,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIndexConnection, err)
	}

	if e.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Config.Timeout)
		defer cancel()
	}

	res, err := client.Bulk(bytes.NewReader(body), client.Bulk.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIndexConnection, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return 0, &BulkError{
			Submitted: len(docs),
			Rejected:  len(docs),
			Reason:    fmt.Sprintf("%s: %s", res.Status(), bytes.TrimSpace(msg)),
		}
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, fmt.Errorf("%w: decoding bulk response: %w", ErrBulkWrite, err)
	}
	if br.Errors {
		return 0, bulkFailure(len(docs), br)
	}
	return len(docs), nil
}

// encodeBulk renders the NDJSON body: an index action without _id followed
// by the document source, for every document.
func encodeBulk(index string, docs []models.Document) ([]byte, error) {
	action, err := json.Marshal(map[string]map[string]string{"index": {"_index": index}})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for i, doc := range docs {
		src, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding document %d: %w", i, err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(src)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func bulkFailure(submitted int, br bulkResponse) *BulkError {
	be := &BulkError{Submitted: submitted}
	for _, item := range br.Items {
		for _, res := range item {
			if res.Error == nil && res.Status < 300 {
				continue
			}
			be.Rejected++
			if be.Reason == "" && res.Error != nil {
				be.Reason = res.Error.Type + ": " + res.Error.Reason
			}
		}
	}
	if be.Reason == "" {
		be.Reason = "index reported errors"
	}
	return be
}
