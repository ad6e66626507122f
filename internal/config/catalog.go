package config

import "github.com/covid-projections/covid-data-public/internal/domain/job"

const (
	// pythonCommand runs the update scripts.
	pythonCommand = "python"

	fipsPopulationCSV = "data/misc/fips_population.csv"
	censusStateTXT    = "data/misc/state.txt"
	texasDir          = "data/states/tx/"
)

// DefaultJobs returns the built-in ordered list of update scripts.
// The order matters only where declared inputs and outputs say so: the Texas
// county spread reads the two Texas files produced right before it.
func DefaultJobs() []Job {
	disabled := false

	return []Job{
		script("covid-data-scraper", "scripts/update_covid_data_scraper.py",
			[]string{censusStateTXT}, []string{"data/cases-cds/timeseries-common.csv"}),
		script("nytimes", "scripts/update_nytimes_data.py",
			[]string{censusStateTXT}, []string{"data/cases-nytimes/timeseries-common.csv"}),
		script("test-and-trace", "scripts/update_test_and_trace.py",
			[]string{censusStateTXT}, []string{"data/test-and-trace/state_data.csv"}),
		script("forecast-hub", "scripts/update_forecast_hub.py",
			nil, []string{"data/forecast-hub/timeseries-common.csv"}),
		script("covid-county-data", "scripts/update_covid_county_data.py",
			[]string{censusStateTXT, fipsPopulationCSV}, []string{"data/cases-covid-county-data/timeseries-common.csv"}),
		tolerant(script("cmdc", "scripts/update_cmdc.py",
			[]string{censusStateTXT, fipsPopulationCSV}, []string{"data/cases-cmdc/timeseries-common.csv"})),
		// update_aws_lake.py takes a single click option, --replace_local_mirror.
		snakeFlags(withFlags(script("aws-lake", "scripts/update_aws_lake.py",
			[]string{censusStateTXT, fipsPopulationCSV}, nil), "replace-local-mirror")),
		script("texas-tsa-hospitalizations", "scripts/update_texas_tsa_hospitalizations.py",
			nil, []string{texasDir + "tx_tsa_hospitalizations.csv"}),
		script("texas-tsa-to-fips-map", "scripts/update_texas_tsa_to_fips_map.py",
			[]string{fipsPopulationCSV, texasDir + "tx_tsa_to_county_map.txt"},
			[]string{texasDir + "tx_tsa_region_fips_map.csv"}),
		script("texas-fips-hospitalizations", "scripts/update_texas_fips_hospitalizations.py",
			[]string{
				texasDir + "tx_tsa_hospitalizations.csv",
				texasDir + "tx_tsa_region_fips_map.csv",
				fipsPopulationCSV,
			},
			[]string{texasDir + "tx_fips_hospitalizations.csv"}),
		script("nha-hospitalization-county", "scripts/update_nha_hospitalization_county.py",
			[]string{fipsPopulationCSV}, []string{"data/states/nv/nha_hospitalization_county.csv"}),
		toggled(script("state-of-kentucky", "scripts/update_state_of_kentucky.py",
			nil, []string{"data/states/ky.csv"}), &disabled),
		toggled(script("usafacts", "scripts/update_usafacts.py",
			[]string{fipsPopulationCSV}, []string{"data/cases-usafacts/timeseries-common.csv"}), &disabled),
		toggled(script("covid-care-map", "scripts/update_covid_care_map.py",
			nil, []string{"data/covid-care-map/healthcare_capacity_data_county.csv"}), &disabled),
	}
}

func script(name, path string, inputs, outputs []string) Job {
	return Job{
		Name:    name,
		Command: pythonCommand,
		Args:    []string{path},
		Inputs:  inputs,
		Outputs: outputs,
	}
}

func tolerant(j Job) Job {
	j.AllowFailure = true

	return j
}

func withFlags(j Job, flags ...string) Job {
	j.Flags = make(map[string]bool, len(flags))
	for _, flag := range flags {
		j.Flags[flag] = true
	}

	return j
}

// snakeFlags is for scripts whose click options are spelled with underscores.
func snakeFlags(j Job) Job {
	j.FlagStyle = job.FlagStyleSnake

	return j
}

func toggled(j Job, enabled *bool) Job {
	j.Enabled = enabled

	return j
}
