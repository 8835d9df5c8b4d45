package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"casegen/internal/models"
	"casegen/internal/storage"
)

// ErrNoStories is returned when none of the uploaded files contain a story.
var ErrNoStories = errors.New("no user stories found in uploaded files")

// File represents an uploaded story file
type File struct {
	Name   string
	Reader io.Reader
}

// Ingester parses uploaded files and queues their stories as a batch
type Ingester struct {
	batchRepo *storage.BatchRepository
}

// NewIngester creates a new Ingester
func NewIngester(batchRepo *storage.BatchRepository) *Ingester {
	return &Ingester{batchRepo: batchRepo}
}

// Ingest parses every file and creates one batch holding all stories.
// Nothing is stored when any file is unreadable or unsupported.
func (i *Ingester) Ingest(ctx context.Context, files []File) (*models.Batch, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files provided")
	}

	var items []models.BatchItem
	for _, f := range files {
		stories, err := ParseStories(f.Name, f.Reader)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		slog.Debug("parsed upload", "file", f.Name, "stories", len(stories))
		for pos, story := range stories {
			items = append(items, models.BatchItem{
				FileName: f.Name,
				Position: pos,
				Story:    story,
			})
		}
	}
	if len(items) == 0 {
		return nil, ErrNoStories
	}

	batch, err := i.batchRepo.Create(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	slog.Info("batch queued", "batch_id", batch.ID, "files", len(files), "stories", len(items))
	return batch, nil
}
