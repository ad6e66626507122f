package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
)

// Config holds the settings of both binaries.
type Config struct {
	// WorkDir is where jobs run and where relative paths are resolved.
	WorkDir string `yaml:"work_dir"`
	// ReportFile receives the YAML report of the last run.
	ReportFile string `yaml:"report_file"`
	// LockFile guards against concurrent sequencer runs.
	LockFile string `yaml:"lock_file"`
	// MetricsFile receives Prometheus text metrics when set.
	MetricsFile string `yaml:"metrics_file,omitempty"`
	// Dispatch configures the remote update trigger.
	Dispatch Dispatch `yaml:"dispatch"`
	// Jobs is the ordered job list run by the sequencer.
	Jobs []Job `yaml:"jobs"`
}

// Dispatch configures the repository dispatch call.
type Dispatch struct {
	// URL is the dispatches endpoint of the data repository.
	URL string `yaml:"url"`
	// EventType is sent as event_type in the request body.
	EventType string `yaml:"event_type"`
	// MonitorURL is printed after a successful dispatch.
	MonitorURL string `yaml:"monitor_url"`
	// TokenEnv names the environment variable holding the token.
	TokenEnv string `yaml:"token_env"`
	// EnvFile is an optional dotenv file consulted when TokenEnv is unset.
	// Empty disables the fallback.
	EnvFile string `yaml:"env_file,omitempty"`
	// Timeout bounds the HTTP request.
	Timeout time.Duration `yaml:"timeout"`
	// RequireSuccess turns non-2xx responses into errors. Defaults to true.
	RequireSuccess *bool `yaml:"require_success,omitempty"`
	// ClientPayload is forwarded as client_payload when not empty.
	ClientPayload map[string]any `yaml:"client_payload,omitempty"`
}

// Job is the YAML form of a job definition.
type Job struct {
	Name         string            `yaml:"name"`
	Command      string            `yaml:"command"`
	Args         []string          `yaml:"args,omitempty"`
	Flags        map[string]bool   `yaml:"flags,omitempty"`
	FlagStyle    job.FlagStyle     `yaml:"flag_style,omitempty"`
	Enabled      *bool             `yaml:"enabled,omitempty"`
	AllowFailure bool              `yaml:"allow_failure,omitempty"`
	Inputs       []string          `yaml:"inputs,omitempty"`
	Outputs      []string          `yaml:"outputs,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	Timeout      time.Duration     `yaml:"timeout,omitempty"`
}

const (
	// DefaultConfigFilename is the default settings file name.
	DefaultConfigFilename = "covid-data-updater.yaml"

	// DefaultReportFilename is where the last run report is written.
	DefaultReportFilename = "update-report.yaml"

	// DefaultLockFilename marks a sequencer run in progress.
	DefaultLockFilename = ".update-data.lock"

	// DefaultDispatchURL is the dispatches endpoint of the data repository.
	DefaultDispatchURL = "https://api.github.com/repos/covid-projections/covid-data-public/dispatches"

	// DefaultEventType starts the source data update workflow.
	DefaultEventType = "update-source-data"

	// DefaultMonitorURL lists the workflow runs of the data repository.
	DefaultMonitorURL = "https://github.com/covid-projections/covid-data-public/actions"

	// DefaultTokenEnv is the variable holding the GitHub token.
	DefaultTokenEnv = "GITHUB_TOKEN"

	// DefaultTimeout bounds the dispatch request.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeTimeout is returned for a negative dispatch timeout.
	errNegativeTimeout = errors.New("dispatch timeout must not be negative")
	// errNoJobs is returned for an explicitly empty job list.
	errNoJobs = errors.New("job list is empty")
)

// Default returns the built-in settings with the full job catalog.
func Default() *Config {
	cfg := &Config{
		Jobs: DefaultJobs(),
	}

	// Defaults are valid by construction.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default location yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings, including the ordering of
// jobs implied by their declared inputs and outputs.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}

	if cfg.ReportFile == "" {
		cfg.ReportFile = DefaultReportFilename
	}

	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFilename
	}

	if err := validateDispatch(&cfg.Dispatch); err != nil {
		return err
	}

	// An omitted jobs key means the built-in catalog; an empty list is a mistake.
	switch {
	case cfg.Jobs == nil:
		cfg.Jobs = DefaultJobs()
	case len(cfg.Jobs) == 0:
		return errNoJobs
	}

	if err := job.ValidateSequence(cfg.Definitions()); err != nil {
		return fmt.Errorf("invalid job list: %w", err)
	}

	return nil
}

func validateDispatch(d *Dispatch) error {
	if d.URL == "" {
		d.URL = DefaultDispatchURL
	}

	if d.EventType == "" {
		d.EventType = DefaultEventType
	}

	if d.MonitorURL == "" {
		d.MonitorURL = DefaultMonitorURL
	}

	if d.TokenEnv == "" {
		d.TokenEnv = DefaultTokenEnv
	}

	if d.Timeout < 0 {
		return errNegativeTimeout
	}

	if d.Timeout == 0 {
		d.Timeout = DefaultTimeout
	}

	if d.RequireSuccess == nil {
		requireSuccess := true
		d.RequireSuccess = &requireSuccess
	}

	if _, err := url.ParseRequestURI(d.URL); err != nil {
		return fmt.Errorf("invalid dispatch URL: %w", err)
	}

	return nil
}

// ShouldRequireSuccess reports whether non-2xx dispatch responses are errors.
func (d *Dispatch) ShouldRequireSuccess() bool {
	return d.RequireSuccess == nil || *d.RequireSuccess
}

// IsEnabled reports whether the job runs; jobs are enabled unless stated otherwise.
func (j *Job) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// Definition converts the YAML job into a domain definition.
func (j *Job) Definition() *job.Definition {
	def := &job.Definition{
		Name:         j.Name,
		Command:      j.Command,
		Args:         j.Args,
		Flags:        j.Flags,
		FlagStyle:    j.FlagStyle,
		Enabled:      j.IsEnabled(),
		AllowFailure: j.AllowFailure,
		Inputs:       j.Inputs,
		Outputs:      j.Outputs,
		Env:          j.Env,
		Timeout:      j.Timeout,
	}

	return def.Clone()
}

// Definitions returns the job list as domain definitions, in order.
func (c *Config) Definitions() []*job.Definition {
	defs := make([]*job.Definition, 0, len(c.Jobs))
	for i := range c.Jobs {
		defs = append(defs, c.Jobs[i].Definition())
	}

	return defs
}
