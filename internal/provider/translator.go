package provider

import (
	"fmt"
	"net/http"
	"sync"
)

// ErrorEntry describes one negative firmware return code.
type ErrorEntry struct {
	Message string
	Status  int
}

// ErrorTable maps return codes of one firmware function.
type ErrorTable map[int]ErrorEntry

// Translator turns firmware return values into API errors.
//
// Tables are keyed by firmware function name. A function without a table
// still translates: every negative code is then unmapped.
type Translator struct {
	mu     sync.RWMutex
	tables map[string]ErrorTable
}

// NewTranslator creates an empty translator.
func NewTranslator() *Translator {
	return &Translator{tables: make(map[string]ErrorTable)}
}

// Register installs or replaces the table for function.
func (t *Translator) Register(function string, table ErrorTable) {
	cp := make(ErrorTable, len(table))
	for code, e := range table {
		cp[code] = e
	}
	t.mu.Lock()
	t.tables[function] = cp
	t.mu.Unlock()
}

// Translate interprets returnValue for function.
//
// AmbiguousReturn and non-negative values pass through with no message and
// status 200. Other negative values map through the function's table; an
// unmapped code yields "Unknown error code: N" with status 424.
func (t *Translator) Translate(function string, returnValue int) (rv *int, message string, status int) {
	rv = IntPtr(returnValue)
	if returnValue >= 0 || returnValue == AmbiguousReturn {
		return rv, "", http.StatusOK
	}

	t.mu.RLock()
	entry, ok := t.tables[function][returnValue]
	t.mu.RUnlock()
	if !ok {
		return rv, fmt.Sprintf("Unknown error code: %d", returnValue), http.StatusFailedDependency
	}
	return rv, entry.Message, entry.Status
}

// Outcome wraps Translate into an Outcome.
func (t *Translator) Outcome(function string, returnValue int) *Outcome {
	rv, msg, status := t.Translate(function, returnValue)
	return &Outcome{ReturnValue: rv, ErrorMessage: msg, HTTPStatus: status}
}
