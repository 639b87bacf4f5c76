package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/pkg/artifact"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestPipelineRun(t *testing.T) {
	cfg := testConfig(t, seedSQLite(t, employeeFixture...))
	idx := &memoryIndex{}
	rec := &recordingRecorder{}
	p := NewPipeline(cfg, NewSQLExtractor(cfg.Source), idx)
	p.Recorder = rec

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	_, err = ulid.Parse(report.ID)
	assert.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, []State{StatePending, StateExtracting, StateCleaning, StateLoading, StateDone}, report.History)
	assert.Equal(t, 4, report.Extracted)
	assert.Equal(t, 3, report.Cleaned)
	assert.Equal(t, 3, report.Documents)
	assert.Empty(t, report.FailedStage)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	assert.Equal(t, "employee_id,\" Name\",Department,Score\n"+
		"1,Alice,Sales,\n"+
		"1,Alice,Sales,\n"+
		"2,Bob,,80\n"+
		"3,Carol,Ops,90\n", readFile(t, cfg.Artifacts.RawPath))
	assert.Equal(t, "employee_id,name,department,score\n"+
		"1,Alice,Sales,85\n"+
		"2,Bob,Unknown,80\n"+
		"3,Carol,Ops,90\n", readFile(t, cfg.Artifacts.CleanedPath))

	assert.Equal(t, 1, idx.calls)
	assert.Equal(t, "employee_data", idx.index)
	var got []string
	for _, doc := range idx.docs {
		b, err := json.Marshal(doc)
		require.NoError(t, err)
		got = append(got, string(b))
	}
	assert.Equal(t, []string{
		`{"employee_id":1,"name":"Alice","department":"Sales","score":85}`,
		`{"employee_id":2,"name":"Bob","department":"Unknown","score":80}`,
		`{"employee_id":3,"name":"Carol","department":"Ops","score":90}`,
	}, got)

	assert.Equal(t, []stageObservation{
		{stage: StageExtract, records: 4},
		{stage: StageClean, records: 3},
		{stage: StageLoad, records: 3},
	}, rec.stages)
	assert.Equal(t, []string{"DONE"}, rec.runs)
	assert.Equal(t, []int{3}, rec.docs)
}

func TestPipelineRunAgainstElasticsearch(t *testing.T) {
	cfg := testConfig(t, seedSQLite(t, employeeFixture...))
	srv := newBulkServer(t, acceptAll)
	cfg.Index = indexConfigFor(t, srv.URL)

	p, err := NewFromConfig(cfg)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Documents)

	_, _, sources := srv.snapshot()
	require.Len(t, sources, 3)
	assert.Equal(t, "Unknown", sources[1]["department"])
}

func TestPipelineUnreachableIndexFailsRun(t *testing.T) {
	cfg := testConfig(t, seedSQLite(t, employeeFixture...))
	srv := newBulkServer(t, acceptAll)
	cfg.Index = indexConfigFor(t, srv.URL)
	srv.Close()

	rec := &recordingRecorder{}
	p := NewPipeline(cfg, NewSQLExtractor(cfg.Source), NewElasticIndex(cfg.Index))
	p.Recorder = rec

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexConnection))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageLoad, se.Stage)

	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []State{StatePending, StateExtracting, StateCleaning, StateLoading, StateFailed}, report.History)
	assert.Equal(t, StageLoad, report.FailedStage)
	assert.Zero(t, report.Documents)
	assert.NotEmpty(t, report.Error)
	assert.Equal(t, []string{"FAILED"}, rec.runs)
	assert.Equal(t, []int{0}, rec.docs)
}

func TestPipelineRejectedBatchFailsRun(t *testing.T) {
	cfg := testConfig(t, seedSQLite(t, employeeFixture...))
	srv := newBulkServer(t, rejectFirst)
	cfg.Index = indexConfigFor(t, srv.URL)

	p := NewPipeline(cfg, NewSQLExtractor(cfg.Source), NewElasticIndex(cfg.Index))
	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBulkWrite))
	assert.Equal(t, StateFailed, report.State)
	assert.Zero(t, report.Documents)
}

func TestPipelineSingleColumnSourceKeepsMissingRows(t *testing.T) {
	cfg := testConfig(t, seedSQLite(t,
		`CREATE TABLE employee_performance (Score INTEGER)`,
		`INSERT INTO employee_performance VALUES (NULL)`,
		`INSERT INTO employee_performance VALUES (80)`,
		`INSERT INTO employee_performance VALUES (90)`,
	))
	idx := &memoryIndex{}

	report, err := NewPipeline(cfg, NewSQLExtractor(cfg.Source), idx).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Extracted)
	assert.Equal(t, 3, report.Cleaned)
	assert.Equal(t, 3, report.Documents)

	assert.Equal(t, "Score\n\"\"\n80\n90\n", readFile(t, cfg.Artifacts.RawPath))
	assert.Equal(t, "score\n85\n80\n90\n", readFile(t, cfg.Artifacts.CleanedPath))
}

func TestPipelineExtractFailureHaltsRun(t *testing.T) {
	cfg := testConfig(t, "unused.db")
	idx := &memoryIndex{}
	rec := &recordingRecorder{}
	p := NewPipeline(cfg, failingExtractor{err: fmt.Errorf("%w: connection refused", ErrSourceConnection)}, idx)
	p.Recorder = rec

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceConnection))
	assert.Equal(t, []State{StatePending, StateExtracting, StateFailed}, report.History)
	assert.Equal(t, StageExtract, report.FailedStage)

	assert.Zero(t, idx.calls)
	assert.Len(t, rec.stages, 1)
	_, err = os.Stat(cfg.Artifacts.RawPath)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	_, err = os.Stat(cfg.Artifacts.CleanedPath)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestPipelineImputationFailure(t *testing.T) {
	cfg := testConfig(t, seedSQLite(t,
		`CREATE TABLE employee_performance (id INTEGER, bonus INTEGER)`,
		`INSERT INTO employee_performance VALUES (1, NULL)`,
	))
	cfg.Cleaning.EmptyNumeric = config.EmptyNumericFail
	idx := &memoryIndex{}

	report, err := NewPipeline(cfg, NewSQLExtractor(cfg.Source), idx).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImputation))
	assert.Equal(t, StageClean, report.FailedStage)
	assert.Zero(t, idx.calls)
}

func TestPipelineEmptyTableIndexesNothing(t *testing.T) {
	cfg := testConfig(t, seedSQLite(t, `CREATE TABLE employee_performance (id INTEGER, name TEXT)`))
	idx := &memoryIndex{}

	report, err := NewPipeline(cfg, NewSQLExtractor(cfg.Source), idx).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Zero(t, report.Documents)
	assert.Zero(t, idx.calls)
}

func TestPipelineCleanMissingRawArtifact(t *testing.T) {
	cfg := testConfig(t, "unused.db")
	p := NewPipeline(cfg, nil, &memoryIndex{})

	_, err := p.Clean(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactIO))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestPipelineCleanMalformedRawArtifact(t *testing.T) {
	cfg := testConfig(t, "unused.db")
	require.NoError(t, os.WriteFile(cfg.Artifacts.RawPath, []byte("a,b\n1\n"), 0o644))
	p := NewPipeline(cfg, nil, &memoryIndex{})

	_, err := p.Clean(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactIO))
	assert.True(t, errors.Is(err, artifact.ErrMalformed))
}

func TestPipelineLoadRejectsUncleanedArtifact(t *testing.T) {
	cfg := testConfig(t, "unused.db")
	require.NoError(t, os.WriteFile(cfg.Artifacts.CleanedPath, []byte("Name,score\nAlice,\n"), 0o644))
	idx := &memoryIndex{}

	_, err := NewPipeline(cfg, nil, idx).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactIO))
	assert.Zero(t, idx.calls)
}

func TestPipelineRepeatedLoadDuplicatesDocuments(t *testing.T) {
	cfg := testConfig(t, seedSQLite(t, employeeFixture...))
	idx := &memoryIndex{}
	p := NewPipeline(cfg, NewSQLExtractor(cfg.Source), idx)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	n, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, idx.docs, 6)
}

func TestNewIndexBackends(t *testing.T) {
	cfg := config.Default().Index

	idx, err := NewIndex(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ElasticIndex{}, idx)

	cfg.Backend = config.BackendMongoDB
	idx, err = NewIndex(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MongoIndex{}, idx)

	cfg.Backend = "solr"
	_, err = NewIndex(cfg)
	assert.Error(t, err)
}
