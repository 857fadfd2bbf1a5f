package core

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/store"
)

// ValidateSpec checks a loaded mapping against what the engine can do on a
// dialect. Where ids come back through RETURNING, a table that is referenced
// by a foreign key must name its id column. In strict mode forward references
// are rejected too.
func ValidateSpec(spec *mapping.Spec, d store.Dialect, strict bool) error {
	var problems []string

	referenced := make(map[string]bool)
	for _, t := range spec.Tables() {
		for _, fk := range t.ForeignKeys {
			referenced[fk.Ref] = true
		}
	}

	if d.Returning {
		for _, t := range spec.Tables() {
			if referenced[t.Key] && t.IDColumn == "" {
				problems = append(problems, fmt.Sprintf(
					"%s: referenced by a foreign key but has no id_coluna (required on %s)", t.Key, d))
			}
		}
	}

	if strict {
		var cfgErr *mapping.ConfigError
		if errors.As(spec.CheckForwardReferences(), &cfgErr) {
			problems = append(problems, cfgErr.Problems...)
		}
	}

	if len(problems) > 0 {
		return &mapping.ConfigError{Problems: problems}
	}
	return nil
}
