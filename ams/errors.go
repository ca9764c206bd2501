package ams

import "errors"

// ErrMalformedFrame indicates a length or structure mismatch while decoding
// a frame: a declared length that disagrees with the bytes present, or a
// truncated region. It is never silently tolerated.
var ErrMalformedFrame = errors.New("malformed AMS frame")

// ErrTypeMismatch indicates a frame was interpreted as one command while its
// header declares another.
var ErrTypeMismatch = errors.New("AMS command mismatch")
