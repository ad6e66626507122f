package job

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
)

var (
	errNameRequired    = errors.New("job name is required")
	errCommandRequired = errors.New("job command is required")
	errInvalidName     = errors.New("job name must be kebab-case")
	errInvalidFlag     = errors.New("flag name must be kebab-case")
	errNegativeTimeout = errors.New("job timeout must not be negative")
	errUnknownStyle    = errors.New("unknown flag style")
)

// FlagStyle controls how canonical flag names are spelled on the command line.
type FlagStyle string

const (
	// FlagStyleKebab renders replace-local-mirror as --replace-local-mirror.
	FlagStyleKebab FlagStyle = "kebab"
	// FlagStyleSnake renders replace-local-mirror as --replace_local_mirror.
	FlagStyleSnake FlagStyle = "snake"
)

// Render returns the command line spelling of a canonical flag name.
// The empty style is kebab.
func (s FlagStyle) Render(name string) string {
	if s == FlagStyleSnake {
		name = strings.ReplaceAll(name, "-", "_")
	}

	return "--" + name
}

func (s FlagStyle) valid() bool {
	return s == "" || s == FlagStyleKebab || s == FlagStyleSnake
}

// kebabCase matches names such as "aws-lake" or "replace-local-mirror".
var kebabCase = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Definition describes one external update job.
type Definition struct {
	// Name identifies the job in config, logs and reports.
	Name string
	// Command is the executable name or path.
	Command string
	// Args are passed to Command before any flag.
	Args []string
	// Flags toggles canonical long flags rendered as --name.
	Flags map[string]bool
	// FlagStyle is the spelling the job expects for its flags, kebab when empty.
	FlagStyle FlagStyle
	// Enabled jobs are executed, disabled ones are skipped.
	Enabled bool
	// AllowFailure makes a failure of this job non-fatal for the run.
	AllowFailure bool
	// Inputs must exist before the job starts.
	Inputs []string
	// Outputs must exist after the job exits successfully.
	Outputs []string
	// Env is appended to the inherited process environment.
	Env map[string]string
	// Timeout bounds the job duration, zero means no limit.
	Timeout time.Duration
}

// Validate checks the definition on its own, without looking at other jobs.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errNameRequired
	}

	if !kebabCase.MatchString(d.Name) {
		return fmt.Errorf("%q: %w", d.Name, errInvalidName)
	}

	if d.Command == "" {
		return fmt.Errorf("job %s: %w", d.Name, errCommandRequired)
	}

	for flag := range d.Flags {
		if !kebabCase.MatchString(flag) {
			return fmt.Errorf("job %s: flag %q: %w", d.Name, flag, errInvalidFlag)
		}
	}

	if !d.FlagStyle.valid() {
		return fmt.Errorf("job %s: %q: %w", d.Name, d.FlagStyle, errUnknownStyle)
	}

	if d.Timeout < 0 {
		return fmt.Errorf("job %s: %w", d.Name, errNegativeTimeout)
	}

	return nil
}

// Argv returns the arguments passed to Command: Args followed by the enabled
// flags in name order, spelled according to FlagStyle.
func (d *Definition) Argv() []string {
	argv := make([]string, 0, len(d.Args)+len(d.Flags))
	argv = append(argv, d.Args...)

	for _, name := range slices.Sorted(maps.Keys(d.Flags)) {
		if d.Flags[name] {
			argv = append(argv, d.FlagStyle.Render(name))
		}
	}

	return argv
}

// CommandLine renders the command for logs.
func (d *Definition) CommandLine() string {
	line := d.Command
	for _, arg := range d.Argv() {
		line += " " + arg
	}

	return line
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}

	cloned := *d
	cloned.Args = slices.Clone(d.Args)
	cloned.Inputs = slices.Clone(d.Inputs)
	cloned.Outputs = slices.Clone(d.Outputs)
	cloned.Flags = maps.Clone(d.Flags)
	cloned.Env = maps.Clone(d.Env)

	return &cloned
}
