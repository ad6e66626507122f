package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
)

// Repository defines persistence operations for run reports.
type Repository interface {
	Load(ctx context.Context) (*job.Run, error)
	Save(ctx context.Context, run *job.Run) error
}

// FileRepository stores the last run report in a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the report.
	path string
	// mu protects concurrent access to the report file.
	mu sync.Mutex
}

// ErrNotFound is returned when no report has been written yet.
var ErrNotFound = errors.New("report not found")

// filePermissions keeps reports readable by CI tooling.
const filePermissions = 0o644

// document is the on-disk layout of a report.
type document struct {
	RunID      string        `yaml:"run_id"`
	Version    string        `yaml:"version,omitempty"`
	Actor      string        `yaml:"actor,omitempty"`
	Hostname   string        `yaml:"hostname,omitempty"`
	Username   string        `yaml:"username,omitempty"`
	State      job.State     `yaml:"state"`
	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
	Duration   time.Duration `yaml:"duration"`
	Jobs       []jobDocument `yaml:"jobs"`
}

type jobDocument struct {
	Name       string        `yaml:"name"`
	Status     job.Status    `yaml:"status"`
	ExitCode   int           `yaml:"exit_code"`
	Error      string        `yaml:"error,omitempty"`
	StartedAt  *time.Time    `yaml:"started_at,omitempty"`
	FinishedAt *time.Time    `yaml:"finished_at,omitempty"`
	Duration   time.Duration `yaml:"duration,omitempty"`
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the report location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the last report from disk.
func (r *FileRepository) Load(_ context.Context) (*job.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read report file: %w", err)
	}

	var doc document
	if err = yaml.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode report file: %w", err)
	}

	return fromDocument(&doc), nil
}

// Save writes the report, replacing the previous one atomically.
func (r *FileRepository) Save(_ context.Context, run *job.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(toDocument(run))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("replace report file: %w", err)
	}

	return nil
}

// toDocument converts the domain run into its YAML form.
func toDocument(run *job.Run) *document {
	doc := &document{
		RunID:      run.ID,
		Version:    run.Version,
		State:      run.State,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Duration:   run.Duration(),
		Jobs:       make([]jobDocument, 0, len(run.Results)),
	}

	if run.Actor != nil {
		doc.Actor = run.Actor.String()
		doc.Hostname = run.Actor.Hostname
		doc.Username = run.Actor.Username
	}

	for _, result := range run.Results {
		jd := jobDocument{
			Name:     result.Name,
			Status:   result.Status,
			ExitCode: result.ExitCode,
			Error:    result.Error,
			Duration: result.Duration(),
		}

		if !result.StartedAt.IsZero() {
			startedAt := result.StartedAt
			jd.StartedAt = &startedAt
		}

		if !result.FinishedAt.IsZero() {
			finishedAt := result.FinishedAt
			jd.FinishedAt = &finishedAt
		}

		doc.Jobs = append(doc.Jobs, jd)
	}

	return doc
}

// fromDocument converts the YAML form back into a domain run.
func fromDocument(doc *document) *job.Run {
	run := &job.Run{
		ID:         doc.RunID,
		Version:    doc.Version,
		State:      doc.State,
		StartedAt:  doc.StartedAt,
		FinishedAt: doc.FinishedAt,
		Results:    make([]*job.Result, 0, len(doc.Jobs)),
	}

	if doc.Hostname != "" || doc.Username != "" {
		run.Actor = &job.Actor{
			Hostname: doc.Hostname,
			Username: doc.Username,
		}
	}

	for _, jd := range doc.Jobs {
		result := &job.Result{
			Name:     jd.Name,
			Status:   jd.Status,
			ExitCode: jd.ExitCode,
			Error:    jd.Error,
		}

		if jd.StartedAt != nil {
			result.StartedAt = *jd.StartedAt
		}

		if jd.FinishedAt != nil {
			result.FinishedAt = *jd.FinishedAt
		}

		run.Results = append(run.Results, result)
	}

	return run
}
