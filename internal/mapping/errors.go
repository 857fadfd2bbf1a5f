package mapping

import (
	"fmt"
	"strings"
)

// ConfigError reports a malformed or missing mapping document.
// It is fatal: a run never starts with a mapping that failed to load.
type ConfigError struct {
	Source   string   // file path or "<inline>"
	Problems []string // every problem found, in document order
	Err      error    // underlying read/parse error, if any
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("mapping config")
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Problems) == 1 {
		fmt.Fprintf(&b, ": %s", e.Problems[0])
	} else if len(e.Problems) > 1 {
		fmt.Fprintf(&b, ":\n  - %s", strings.Join(e.Problems, "\n  - "))
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// problems collects validation failures so a document reports all of them at once.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err(source string) error {
	if len(p) == 0 {
		return nil
	}
	return &ConfigError{Source: source, Problems: p}
}
