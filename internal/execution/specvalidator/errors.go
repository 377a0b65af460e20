package specvalidator

import "strings"

// ValidationError aggregates pipeline validation issues.
type ValidationError struct {
	Issues []string
	cause  error
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "pipeline validation failed"
	}
	return "pipeline validation failed: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	if strings.TrimSpace(issue) == "" {
		return
	}
	e.Issues = append(e.Issues, issue)
}

// AddCause records an issue and the sentinel it should unwrap to. The last
// recorded cause wins; validation is all-or-nothing either way.
func (e *ValidationError) AddCause(issue string, cause error) {
	e.Add(issue)
	e.cause = cause
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}
