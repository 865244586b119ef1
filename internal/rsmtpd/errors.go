package rsmtpd

import "fmt"

// panicToErr converts a recovered panic value into an error, so a
// handler that panics can be treated the same as one that returns an
// error (spec.md §4.4 step 2: "catch any exception, log it, treat as no
// response").
func panicToErr(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("rsmtpd: handler panicked: %w", err)
	}
	return fmt.Errorf("rsmtpd: handler panicked: %v", r)
}
