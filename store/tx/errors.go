package tx

import "errors"

var (
	// ErrActive is returned by Begin while another transaction is open.
	ErrActive = errors.New("tx: transaction already active")

	// ErrClosed is returned when a committed or rolled-back transaction is
	// used again.
	ErrClosed = errors.New("tx: transaction closed")
)
