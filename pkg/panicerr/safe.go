package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// SafeContext wraps a function that takes a context and returns an error,
// catching any panics and returning them as an error. A fetch that panics
// must not take down the console process; it is reported like any other
// fetch failure.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn(ctx)
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}
