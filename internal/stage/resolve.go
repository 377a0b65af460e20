package stage

import (
	"fmt"

	"github.com/ember-labs/ember-go/internal/domain"
)

// resolveParams substitutes link expressions in a stage's params with
// values from completed dependency results. A value that is exactly one
// link resolves to the linked output as-is; links embedded in longer
// strings are interpolated textually.
func resolveParams(params map[string]any, deps map[string]domain.StageResult) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for key, value := range params {
		resolved, err := resolveValue(value, deps)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", key, err)
		}
		out[key] = resolved
	}
	return out, nil
}

// resolveArgs expands link expressions in script arguments. Arguments stay
// strings, so linked values are interpolated textually.
func resolveArgs(args []string, deps map[string]domain.StageResult) ([]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]string, len(args))
	for i, arg := range args {
		resolved, err := resolveString(arg, deps)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = fmt.Sprint(resolved)
	}
	return out, nil
}

func resolveValue(value any, deps map[string]domain.StageResult) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, deps)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := resolveValue(item, deps)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func resolveString(value string, deps map[string]domain.StageResult) (any, error) {
	if stageName, key, ok := domain.ParseLink(value); ok {
		result, present := deps[stageName]
		if !present {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnresolvedDependency, stageName)
		}
		return result.Output(key)
	}
	if !domain.ContainsLink(value) {
		return value, nil
	}

	var resolveErr error
	expanded := domain.ExpandLinks(value, func(stageName, key string) (string, bool) {
		result, present := deps[stageName]
		if !present {
			resolveErr = fmt.Errorf("%w: %q", domain.ErrUnresolvedDependency, stageName)
			return "", false
		}
		out, err := result.Output(key)
		if err != nil {
			resolveErr = err
			return "", false
		}
		return fmt.Sprint(out), true
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return expanded, nil
}
