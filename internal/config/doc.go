// Package config defines the settings shared by trigger-update and
// update-data and provides helpers to load, validate and save them in YAML.
//
// The file holds the repository dispatch endpoint and the ordered job list
// with per-job enable flags. When the default file is absent the built-in
// catalog of update scripts is used.
package config
