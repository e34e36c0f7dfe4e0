package config

import (
	"fmt"

	"mvdan.cc/sh/v3/shell"
)

// ParseRuntime splits a runtime setting such as `bun --smol` or
// `"$HOME/.bun/bin/bun"` into program and arguments, following POSIX shell
// quoting. Variable references expand through getenv.
func ParseRuntime(runtime string, getenv func(string) string) ([]string, error) {
	fields, err := shell.Fields(runtime, getenv)
	if err != nil {
		return nil, fmt.Errorf("invalid runtime %q: %w", runtime, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("invalid runtime %q: empty command", runtime)
	}
	return fields, nil
}
