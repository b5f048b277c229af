package domain

import "github.com/cockroachdb/errors"

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrInvalidRequest      = errors.New("unable to locate 0 or negative seats in the venue")
	ErrSeatNotFound        = errors.New("seat does not exist")
	ErrSeatUnavailable     = errors.New("seat is not open")
	ErrSeatNotHeld         = errors.New("seat is not held")
	ErrHolderMismatch      = errors.New("email address does not match")
	ErrSeatAlreadyReserved = errors.New("seat is reserved")
	ErrSeatAlreadyOpen     = errors.New("seat is open")
	ErrInsufficientSeats   = errors.New("insufficient open seats")
	ErrNoSuchHold          = errors.New("seat hold id unknown")
	ErrInvalidLayout       = errors.New("invalid venue layout")
)
