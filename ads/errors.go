package ads

import (
	"adslink/ams"
)

// ErrMalformedFrame aliases the AMS-level sentinel so errors.Is matches
// across both layers: every truncated region, count overrun, or length
// mismatch in an ADS payload wraps this.
var ErrMalformedFrame = ams.ErrMalformedFrame

// ErrTypeMismatch aliases the AMS-level sentinel: a frame or packet was
// interpreted as one command while its header declares another.
var ErrTypeMismatch = ams.ErrTypeMismatch
