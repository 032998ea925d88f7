package face

import "errors"

// ErrInvalidInput is returned for malformed pose matrices.
var ErrInvalidInput = errors.New("face: invalid input")
