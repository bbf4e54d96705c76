package scheduler

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
)

// ObservationSource supplies the observations evaluated each cycle.
type ObservationSource interface {
	// Observations returns the current case counts for all monitored areas.
	Observations(ctx context.Context) ([]models.AreaObservation, error)
}

// FileSource reads observations from a YAML file. The file is re-read on
// every cycle, so edits take effect without a restart.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the YAML file at path.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("observation file path is required")
	}
	s := &FileSource{path: path}
	// Fail fast on an unreadable or malformed file.
	if _, err := s.Observations(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

type observationFile struct {
	Areas []models.AreaObservation `yaml:"areas"`
}

// Observations reads and parses the backing file.
func (s *FileSource) Observations(ctx context.Context) ([]models.AreaObservation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read observation file: %w", err)
	}

	var file observationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse observation file %s: %w", s.path, err)
	}

	return file.Areas, nil
}

// StaticSource returns a fixed observation set. Used for tests and one-shot
// evaluation runs.
type StaticSource []models.AreaObservation

// Observations returns the fixed set.
func (s StaticSource) Observations(ctx context.Context) ([]models.AreaObservation, error) {
	return s, nil
}
