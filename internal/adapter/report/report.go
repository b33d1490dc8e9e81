// Package report reads evaluation question lists and writes evaluation results.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"docqa/internal/domain"
)

// Columns is the CSV header, in output order.
var Columns = []string{"question", "ai_answer", "ideal_answer", "evaluation", "context", "hash", "score"}

// DefaultOutputName returns eval_results_YYYYmmdd_HHMMSS.csv for t.
func DefaultOutputName(t time.Time) string {
	return "eval_results_" + t.Format("20060102_150405") + ".csv"
}

// LoadQA decodes a JSON array of {question, ideal_answer} objects.
func LoadQA(r io.Reader) ([]domain.QAItem, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var items []domain.QAItem
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: decode QA list: %v", domain.ErrInvalidInput, err)
	}
	for i, it := range items {
		if strings.TrimSpace(it.Question) == "" {
			return nil, fmt.Errorf("%w: QA item %d has an empty question", domain.ErrInvalidInput, i)
		}
	}
	return items, nil
}

func LoadQAFile(path string) ([]domain.QAItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open QA file: %w", err)
	}
	defer f.Close()
	return LoadQA(f)
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []domain.EvalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Question,
			r.AIAnswer,
			r.IdealAnswer,
			r.Evaluation,
			r.Context,
			r.Hash,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteCSVFile(path string, records []domain.EvalRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Summary is the aggregate of an evaluation run.
type Summary struct {
	Count int
	Total float64
	Mean  float64
}

func Summarize(records []domain.EvalRecord) Summary {
	s := Summary{Count: len(records)}
	for _, r := range records {
		s.Total += r.Score
	}
	if s.Count > 0 {
		s.Mean = s.Total / float64(s.Count)
	}
	return s
}
