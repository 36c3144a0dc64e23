package condfilter

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/theplant/condfilter/internal/hook"
)

// UnknownOperatorPolicy decides how the evaluator treats operators it does not know.
type UnknownOperatorPolicy int

const (
	// UnknownOperatorPass lets the item through and logs a warning.
	UnknownOperatorPass UnknownOperatorPolicy = iota
	// UnknownOperatorFail rejects the item and logs an error.
	UnknownOperatorFail
)

// EvaluateFunc evaluates a single rule against an item.
type EvaluateFunc func(item map[string]any, rule *Rule) bool

type options struct {
	logger          *slog.Logger
	unknownOperator UnknownOperatorPolicy
	evaluateHook    func(next EvaluateFunc) EvaluateFunc
	newID           func(prefix string) string
}

type Option func(*options)

// WithLogger sets the logger used for evaluation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStrictOperators makes rules with unknown operators fail instead of pass.
func WithStrictOperators() Option {
	return func(o *options) {
		o.unknownOperator = UnknownOperatorFail
	}
}

// WithUnknownOperatorPolicy sets the unknown operator policy explicitly.
func WithUnknownOperatorPolicy(policy UnknownOperatorPolicy) Option {
	return func(o *options) {
		o.unknownOperator = policy
	}
}

// WithEvaluateHook wraps rule evaluation. Hooks are applied in the order they are added,
// the built-in evaluator is always at the end of the chain.
func WithEvaluateHook(hooks ...func(next EvaluateFunc) EvaluateFunc) Option {
	return func(o *options) {
		o.evaluateHook = hook.Append(o.evaluateHook, hooks...)
	}
}

// WithIDGenerator overrides how synthetic rule ids are generated.
func WithIDGenerator(newID func(prefix string) string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

// NewID returns prefix-<uuid>.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
