package etl

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/pkg/models"
)

// seedSQLite creates a database file holding the employee_performance
// table and returns its path.
func seedSQLite(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

var employeeFixture = []string{
	`CREATE TABLE employee_performance (
		employee_id INTEGER,
		" Name" TEXT,
		Department TEXT,
		Score INTEGER
	)`,
	`INSERT INTO employee_performance VALUES (1, 'Alice', 'Sales', NULL)`,
	`INSERT INTO employee_performance VALUES (1, 'Alice', 'Sales', NULL)`,
	`INSERT INTO employee_performance VALUES (2, 'Bob', NULL, 80)`,
	`INSERT INTO employee_performance VALUES (3, 'Carol', 'Ops', 90)`,
}

// testConfig points every stage at temporary files and a sqlite source.
func testConfig(t *testing.T, dbPath string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Source.Driver = config.DriverSQLite
	cfg.Source.Database = dbPath
	cfg.Artifacts.RawPath = filepath.Join(dir, "raw_data.csv")
	cfg.Artifacts.CleanedPath = filepath.Join(dir, "clean_data.csv")
	return cfg
}

// indexConfigFor targets an Elasticsearch-compatible server at rawURL.
func indexConfigFor(t *testing.T, rawURL string) config.IndexConfig {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := config.Default().Index
	cfg.Scheme = u.Scheme
	cfg.Host = host
	cfg.Port = port
	cfg.Timeout = 5 * time.Second
	return cfg
}

// bulkServer fakes the _bulk endpoint. respond builds the reply from the
// decoded source documents.
type bulkServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests int
	actions  []map[string]map[string]string
	sources  []map[string]interface{}
}

func newBulkServer(t *testing.T, respond func(w http.ResponseWriter, n int)) *bulkServer {
	t.Helper()
	bs := &bulkServer{}
	bs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/_bulk" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")

		bs.mu.Lock()
		bs.requests++
		n := 0
		for i := 0; i+1 < len(lines); i += 2 {
			var action map[string]map[string]string
			var source map[string]interface{}
			if json.Unmarshal([]byte(lines[i]), &action) != nil || json.Unmarshal([]byte(lines[i+1]), &source) != nil {
				bs.mu.Unlock()
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			bs.actions = append(bs.actions, action)
			bs.sources = append(bs.sources, source)
			n++
		}
		bs.mu.Unlock()

		respond(w, n)
	}))
	t.Cleanup(bs.Close)
	return bs
}

func acceptAll(w http.ResponseWriter, n int) {
	items := make([]map[string]interface{}, n)
	for i := range items {
		items[i] = map[string]interface{}{"index": map[string]interface{}{"status": 201, "result": "created"}}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"took": 3, "errors": false, "items": items})
}

// rejectFirst rejects the first document of the batch and accepts the rest.
func rejectFirst(w http.ResponseWriter, n int) {
	items := make([]map[string]interface{}, n)
	for i := range items {
		items[i] = map[string]interface{}{"index": map[string]interface{}{"status": 201, "result": "created"}}
	}
	items[0] = map[string]interface{}{"index": map[string]interface{}{
		"status": 400,
		"error": map[string]interface{}{
			"type":   "mapper_parsing_exception",
			"reason": "failed to parse field [score]",
		},
	}}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"took": 3, "errors": true, "items": items})
}

// memoryIndex is an in-memory Index.
type memoryIndex struct {
	mu    sync.Mutex
	calls int
	index string
	docs  []models.Document
	err   error
}

func (m *memoryIndex) BulkIndex(_ context.Context, index string, docs []models.Document) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	m.index = index
	m.docs = append(m.docs, docs...)
	return len(docs), nil
}

type failingExtractor struct{ err error }

func (f failingExtractor) Extract(context.Context) (*models.Table, error) {
	return nil, f.err
}

type stageObservation struct {
	stage   string
	records int
	err     error
}

type recordingRecorder struct {
	stages []stageObservation
	runs   []string
	docs   []int
}

func (r *recordingRecorder) ObserveStage(stage string, _ time.Duration, records int, err error) {
	r.stages = append(r.stages, stageObservation{stage: stage, records: records, err: err})
}

func (r *recordingRecorder) ObserveRun(state string, documents int, _ time.Time) {
	r.runs = append(r.runs, state)
	r.docs = append(r.docs, documents)
}

func (bs *bulkServer) snapshot() (requests int, actions []map[string]map[string]string, sources []map[string]interface{}) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.requests, bs.actions, bs.sources
}
