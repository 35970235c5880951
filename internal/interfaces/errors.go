package interfaces

import "errors"

// ErrUnauthorized means the caller's identity is verified but it has no
// rights over the target project or milestone.
var ErrUnauthorized = errors.New("unauthorized access")
