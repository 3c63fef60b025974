// Package middleware provides composable middleware for lifecycle actions.
//
// A [Middleware] wraps the handler of one action (claim, check-in, SOP
// approval, task decision...). Middleware are composed into a chain using
// [Chain] and applied around every action the engine executes. They are
// applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs action, job, actor, duration and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Timeout]: cancels the action context after the call's timeout
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records per-action duration and outcome counters
//   - [Scope]: attaches the calling actor to the context
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, c middleware.Call, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
