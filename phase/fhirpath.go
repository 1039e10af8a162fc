package phase

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/types"
)

// Evaluator evaluates FHIRPath invariants, caching compiled expressions.
// Safe for concurrent use.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*fhirpath.Expression
}

// NewEvaluator creates an Evaluator with an empty cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*fhirpath.Expression)}
}

// Evaluate reports whether expression holds for node, which is either raw
// JSON or a decoded JSON object. An empty result is false; a single boolean
// is its value; any other non-empty result is true.
func (e *Evaluator) Evaluate(expression string, node any) (bool, error) {
	data, err := toJSON(node)
	if err != nil {
		return false, fmt.Errorf("failed to convert node to JSON: %w", err)
	}

	compiled, err := e.compile(expression)
	if err != nil {
		return false, fmt.Errorf("failed to compile FHIRPath expression '%s': %w", expression, err)
	}

	result, err := compiled.Evaluate(data)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate FHIRPath expression '%s': %w", expression, err)
	}
	return truthy(result), nil
}

func (e *Evaluator) compile(expression string) (*fhirpath.Expression, error) {
	e.mu.RLock()
	compiled, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := fhirpath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()
	return compiled, nil
}

// CacheSize returns the number of compiled expressions held.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func truthy(result types.Collection) bool {
	if len(result) == 0 {
		return false
	}
	if len(result) == 1 {
		if b, ok := result[0].(types.Boolean); ok {
			return b.Bool()
		}
	}
	return true
}

func toJSON(node any) ([]byte, error) {
	switch v := node.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
