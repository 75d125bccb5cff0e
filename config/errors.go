package config

import "strings"

// ValidationError reports pool targets with no corresponding pipeline
// configuration entry.
type ValidationError struct {
	MissingPipelines []string
}

func (e *ValidationError) Error() string {
	return "config: missing pipeline entries for targets: " + strings.Join(e.MissingPipelines, ", ")
}
