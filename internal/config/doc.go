// Package config loads the Hosted Storage Manager's operator-facing
// configuration (spec.md §6) from environment variables and an optional
// YAML file, and initializes the process-wide structured logger.
//
// Loading follows the teacher's getenv-with-default pattern
// (cmd/node/main.go) generalized with spf13/viper so the document-storage
// keys can be set via HSM_-prefixed environment variables or a YAML file
// named by the worker's --config flag; an environment variable takes
// precedence over the file. No other command-line flags are bound to
// these keys.
package config
