package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// IngestSummary aggregates a multi-file ingestion.
type IngestSummary struct {
	Results    []IngestResult
	Ingested   int
	Duplicates int
	Empty      int
	Chunks     int
	Errors     []string
}

// IngestFiles ingests each file under its base name. Per-file failures are
// collected and do not stop the run; context cancellation does.
func (u *IngestUseCase) IngestFiles(ctx context.Context, files []port.FileInfo, onFile func(port.FileInfo, *IngestResult)) (*IngestSummary, error) {
	summary := &IngestSummary{}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		// Read file content
		data, err := os.ReadFile(file.Path)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("failed to read %s: %v", file.Path, err))
			continue
		}

		res, err := u.Ingest(ctx, filepath.Base(file.Path), data)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Errors = append(summary.Errors, fmt.Sprintf("failed to ingest %s: %v", file.Path, err))
			continue
		}

		summary.Results = append(summary.Results, *res)
		switch res.Status {
		case domain.StatusIngested:
			summary.Ingested++
			summary.Chunks += res.Chunks
		case domain.StatusDuplicate:
			summary.Duplicates++
		case domain.StatusEmpty:
			summary.Empty++
		}
		if onFile != nil {
			onFile(file, res)
		}
	}

	return summary, nil
}
