package resolver

import "errors"

// ErrResolveFailed wraps storage failures while resolving. Unknown and
// malformed device IDs return the device package errors instead.
var ErrResolveFailed = errors.New("resolver: resolve failed")
