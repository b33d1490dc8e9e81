package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestLoadQA(t *testing.T) {
	in := `[{"question":"What is X?","ideal_answer":"X is Y."},{"question":"Who?","ideal_answer":"Z"}]`
	items, err := LoadQA(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "What is X?", items[0].Question)
	assert.Equal(t, "Z", items[1].IdealAnswer)
}

func TestLoadQARejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"not json":       `nope`,
		"object":         `{"question":"q"}`,
		"empty question": `[{"question":"  ","ideal_answer":"a"}]`,
		"unknown field":  `[{"question":"q","ideal_answer":"a","extra":1}]`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadQA(strings.NewReader(in))
			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []domain.EvalRecord{{
		Question:    "q, with comma",
		AIAnswer:    "a",
		IdealAnswer: "i",
		Evaluation:  "close",
		Context:     "line1\nline2",
		Hash:        "abc",
		Score:       0.5,
	}})
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"q, with comma", "a", "i", "close", "line1\nline2", "abc", "0.5"}, rows[1])
}

func TestWriteCSVFileAndLoadQAFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, WriteCSVFile(path, nil))

	_, err := LoadQAFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDefaultOutputName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "eval_results_20240309_140507.csv", DefaultOutputName(ts))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]domain.EvalRecord{{Score: 1}, {Score: 0.5}, {Score: 0}})
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 1.5, s.Total, 1e-9)
	assert.InDelta(t, 0.5, s.Mean, 1e-9)
	assert.Equal(t, Summary{}, Summarize(nil))
}
