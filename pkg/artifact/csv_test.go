package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BartekS5/dailyetl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInfersColumnKinds(t *testing.T) {
	in := "id,Name,score,ratio,notes\n" +
		"1, Alice,80,0.5,\n" +
		"2,Bob,,1,\n" +
		"3,,90,2.25,\n"

	tbl, err := Decode(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "Name", "score", "ratio", "notes"}, tbl.Header)
	assert.Equal(t, []models.Kind{models.KindInt, models.KindText, models.KindInt, models.KindFloat, models.KindEmpty}, tbl.Kinds)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, models.Row{int64(1), " Alice", int64(80), 0.5, nil}, tbl.Rows[0])
	assert.Equal(t, models.Row{int64(2), "Bob", nil, 1.0, nil}, tbl.Rows[1])
	assert.Equal(t, models.Row{int64(3), nil, int64(90), 2.25, nil}, tbl.Rows[2])
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, models.KindEmpty, InferKind(nil))
	assert.Equal(t, models.KindEmpty, InferKind([]string{"", ""}))
	assert.Equal(t, models.KindInt, InferKind([]string{"1", "", "-3"}))
	assert.Equal(t, models.KindFloat, InferKind([]string{"1", "2.5"}))
	assert.Equal(t, models.KindFloat, InferKind([]string{"2.5", "1"}))
	assert.Equal(t, models.KindText, InferKind([]string{"1", "x"}))
	assert.Equal(t, models.KindText, InferKind([]string{"1.5", "NaN"}))
	assert.Equal(t, models.KindText, InferKind([]string{"Nan"}))
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"short row":      "a,b\n1\n",
		"long row":       "a,b\n1,2,3\n",
		"bare quote":     "a,b\n1,\"x\n",
		"quote in field": "a\nx\"y\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestWriteThenReadIsLossless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clean.csv")
	tbl := &models.Table{
		Header: []string{"name", "score", "ratio", "comment"},
		Kinds:  []models.Kind{models.KindText, models.KindInt, models.KindFloat, models.KindText},
		Rows: []models.Row{
			{"Alice", int64(80), 80.0, "says \"hi\", twice"},
			{"Bob", int64(-1), 0.25, "Unknown"},
			{" 007", int64(0), 1e6, "line\nbreak"},
		},
	}

	require.NoError(t, Write(path, tbl))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, tbl, got)
}

func TestSingleColumnMissingValuesSurviveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	tbl := &models.Table{
		Header: []string{"Score"},
		Kinds:  []models.Kind{models.KindInt},
		Rows:   []models.Row{{nil}, {int64(80)}, {nil}},
	}

	require.NoError(t, Write(path, tbl))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Score\n\"\"\n80\n\"\"\n", string(data))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, tbl, got)
}

func TestSingleColumnAllMissing(t *testing.T) {
	var buf strings.Builder
	tbl := &models.Table{
		Header: []string{"bonus"},
		Kinds:  []models.Kind{models.KindEmpty},
		Rows:   []models.Row{{nil}, {nil}},
	}
	require.NoError(t, Encode(&buf, tbl))

	got, err := Decode(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, tbl, got)
}

func TestWriteOverwritesPreviousArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	first := &models.Table{Header: []string{"a"}, Rows: []models.Row{{int64(1)}, {int64(2)}}}
	second := &models.Table{Header: []string{"b"}, Rows: []models.Row{{"x"}}}

	require.NoError(t, Write(path, first))
	require.NoError(t, Write(path, second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b\nx\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteRejectsRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	tbl := &models.Table{Header: []string{"a", "b"}, Rows: []models.Row{{int64(1)}}}

	err := Write(path, tbl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHeaderOnlyArtifact(t *testing.T) {
	tbl, err := Decode(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, []models.Kind{models.KindEmpty, models.KindEmpty}, tbl.Kinds)
}
