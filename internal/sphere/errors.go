package sphere

import "errors"

// ErrInvalidArgument reports a caller error: a parity outside {1, -1} or a
// spectral scale request without a dispersion axis.
var ErrInvalidArgument = errors.New("invalid argument")
