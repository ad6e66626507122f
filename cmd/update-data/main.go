// Command update-data runs the ordered source data update jobs.
package main

import "github.com/covid-projections/covid-data-public/cmd/update-data/cmd"

func main() {
	cmd.Execute()
}
