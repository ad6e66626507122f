// Command trigger-update asks GitHub to start the source data update workflow.
package main

import "github.com/covid-projections/covid-data-public/cmd/trigger-update/cmd"

func main() {
	cmd.Execute()
}
