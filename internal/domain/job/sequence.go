package job

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	errDuplicateJob     = errors.New("duplicate job name")
	errProducerAfter    = errors.New("input is produced by a later job")
	errDuplicateProduct = errors.New("output is produced by more than one job")
)

// ValidateSequence checks every definition and the ordering implied by their
// declared inputs and outputs: a job consuming the output of another job must
// come after it. Disabled jobs take part in the check so that toggling a job
// never reorders the others.
func ValidateSequence(defs []*Definition) error {
	names := make(map[string]struct{}, len(defs))
	producers := make(map[string]int, len(defs))

	for i, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}

		if _, found := names[def.Name]; found {
			return fmt.Errorf("%s: %w", def.Name, errDuplicateJob)
		}

		names[def.Name] = struct{}{}

		for _, output := range def.Outputs {
			key := filepath.Clean(output)
			if other, found := producers[key]; found {
				return fmt.Errorf("%s (%s, %s): %w", output, defs[other].Name, def.Name, errDuplicateProduct)
			}

			producers[key] = i
		}
	}

	for i, def := range defs {
		for _, input := range def.Inputs {
			producer, found := producers[filepath.Clean(input)]
			if !found || producer <= i {
				continue
			}

			return fmt.Errorf("job %s reads %s written by %s: %w", def.Name, input, defs[producer].Name, errProducerAfter)
		}
	}

	return nil
}
