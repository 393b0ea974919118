package wire

import "errors"

// Behavioral error kinds shared across the codec and, via wrapping, the
// router and mesh engine. Callers should check with errors.Is, not
// equality, since these are frequently wrapped with fmt.Errorf("...: %w").
var (
	ErrMalformed = errors.New("wire: malformed packet")
	ErrOverflow  = errors.New("wire: encode overflow")
	ErrPathFull  = errors.New("wire: path full")
)
