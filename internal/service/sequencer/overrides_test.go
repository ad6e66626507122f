package sequencer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
)

func enabledNames(list []*job.Definition) []string {
	var names []string

	for _, def := range list {
		if def.Enabled {
			names = append(names, def.Name)
		}
	}

	return names
}

// TestOverrides_Apply adjusts the job list without touching the input.
func TestOverrides_Apply(t *testing.T) {
	t.Parallel()

	base := func() []*job.Definition {
		list := defs("nytimes", "cmdc", "aws-lake", "usafacts")
		list[3].Enabled = false

		return list
	}

	tests := []struct {
		name      string
		overrides *Overrides
		want      []string
		wantErr   error
	}{
		{name: "nil", overrides: nil, want: []string{"nytimes", "cmdc", "aws-lake"}},
		{name: "enable", overrides: &Overrides{Enable: []string{"usafacts"}}, want: []string{"nytimes", "cmdc", "aws-lake", "usafacts"}},
		{name: "disable", overrides: &Overrides{Disable: []string{"cmdc"}}, want: []string{"nytimes", "aws-lake"}},
		{name: "only", overrides: &Overrides{Only: []string{"aws-lake", "usafacts"}}, want: []string{"aws-lake", "usafacts"}},
		{name: "only then disable", overrides: &Overrides{Only: []string{"aws-lake", "cmdc"}, Disable: []string{"cmdc"}}, want: []string{"aws-lake"}},
		{name: "unknown", overrides: &Overrides{Disable: []string{"nope"}}, wantErr: errUnknownJobName},
		{name: "conflict", overrides: &Overrides{Enable: []string{"cmdc"}, Disable: []string{"cmdc"}}, wantErr: errConflict},
		{name: "bad flag", overrides: &Overrides{Flags: []string{"aws-lake"}}, wantErr: errBadFlagSpec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			input := base()

			got, err := tt.overrides.Apply(input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, enabledNames(got))
			require.Equal(t, []string{"nytimes", "cmdc", "aws-lake"}, enabledNames(input))
		})
	}
}

// TestOverrides_Flags turns canonical flags on for one job.
func TestOverrides_Flags(t *testing.T) {
	t.Parallel()

	input := defs("aws-lake")
	input[0].Args = []string{"scripts/update_aws_lake.py"}

	got, err := (&Overrides{Flags: []string{"aws-lake:--replace-local-mirror"}}).Apply(input)
	require.NoError(t, err)
	require.Equal(t, []string{"scripts/update_aws_lake.py", "--replace-local-mirror"}, got[0].Argv())
	require.Empty(t, input[0].Flags)

	_, err = (&Overrides{Flags: []string{"aws-lake:replace_local_mirror"}}).Apply(input)
	require.Error(t, err)
}
