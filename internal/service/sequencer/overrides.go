package sequencer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
)

var (
	errUnknownJobName = errors.New("unknown job")
	errBadFlagSpec    = errors.New("flag must look like JOB:FLAG")
	errConflict       = errors.New("job is both enabled and disabled")
)

// Overrides adjust the configured job list for one run without editing the
// configuration file.
type Overrides struct {
	// Enable turns the named jobs on.
	Enable []string
	// Disable turns the named jobs off.
	Disable []string
	// Only runs the named jobs and disables every other one.
	Only []string
	// Flags turns canonical flags on, each entry being JOB:FLAG.
	Flags []string
}

// Apply returns copies of defs with the overrides applied. The input slice is
// not modified.
func (o *Overrides) Apply(defs []*job.Definition) ([]*job.Definition, error) {
	byName := make(map[string]*job.Definition, len(defs))
	result := make([]*job.Definition, 0, len(defs))

	for _, def := range defs {
		cloned := def.Clone()
		byName[cloned.Name] = cloned
		result = append(result, cloned)
	}

	if o == nil {
		return result, nil
	}

	lookup := func(name string) (*job.Definition, error) {
		def, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%q: %w", name, errUnknownJobName)
		}

		return def, nil
	}

	if len(o.Only) > 0 {
		for _, def := range result {
			def.Enabled = false
		}

		for _, name := range o.Only {
			def, err := lookup(name)
			if err != nil {
				return nil, err
			}

			def.Enabled = true
		}
	}

	disabled := make(map[string]struct{}, len(o.Disable))

	for _, name := range o.Disable {
		def, err := lookup(name)
		if err != nil {
			return nil, err
		}

		def.Enabled = false
		disabled[def.Name] = struct{}{}
	}

	for _, name := range o.Enable {
		def, err := lookup(name)
		if err != nil {
			return nil, err
		}

		if _, found := disabled[def.Name]; found {
			return nil, fmt.Errorf("%s: %w", def.Name, errConflict)
		}

		def.Enabled = true
	}

	for _, entry := range o.Flags {
		name, flag, found := strings.Cut(entry, ":")
		if !found || name == "" || flag == "" {
			return nil, fmt.Errorf("%q: %w", entry, errBadFlagSpec)
		}

		def, err := lookup(name)
		if err != nil {
			return nil, err
		}

		if def.Flags == nil {
			def.Flags = make(map[string]bool, 1)
		}

		def.Flags[strings.TrimPrefix(strings.TrimSpace(flag), "--")] = true

		if err = def.Validate(); err != nil {
			return nil, err
		}
	}

	return result, nil
}
