package alloc

import "errors"

// ErrNilPage is returned when page 0 is released. The header page is never
// allocatable.
var ErrNilPage = errors.New("alloc: page 0 is not allocatable")
