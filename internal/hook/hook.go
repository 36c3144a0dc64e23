package hook

// Chain composes hooks so that the first hook is the outermost wrapper.
// It returns nil when no non-nil hook is given.
func Chain[T any](hooks ...func(next T) T) func(next T) T {
	var chained []func(next T) T
	for _, h := range hooks {
		if h != nil {
			chained = append(chained, h)
		}
	}
	if len(chained) == 0 {
		return nil
	}
	return func(next T) T {
		for i := len(chained) - 1; i >= 0; i-- {
			next = chained[i](next)
		}
		return next
	}
}

// Prepend chains hooks in front of an existing (possibly nil) hook.
func Prepend[T any](existing func(next T) T, hooks ...func(next T) T) func(next T) T {
	return Chain(append(hooks, existing)...)
}

// Append chains hooks after an existing (possibly nil) hook.
func Append[T any](existing func(next T) T, hooks ...func(next T) T) func(next T) T {
	return Chain(append([]func(next T) T{existing}, hooks...)...)
}
