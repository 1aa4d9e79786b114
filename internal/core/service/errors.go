package service

import "errors"

// Operator input errors. The session is left unchanged and the operator may
// scan again immediately.
var (
	ErrDuplicateScan      = errors.New("serial already scanned in this session")
	ErrSerialNotFound     = errors.New("serial not found in inventory")
	ErrUnitUnavailable    = errors.New("unit is not available")
	ErrNoMatchingLineItem = errors.New("no order item needs this unit")
	ErrUnknownLineItem    = errors.New("order item not found")
)

// Precondition errors, rejected before any transaction starts.
var (
	ErrIncompleteScan   = errors.New("not all order items are fully scanned")
	ErrSessionNotFound  = errors.New("fulfillment session not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrNothingToFulfill = errors.New("order has no structured items to fulfill")
	ErrInvalidLot       = errors.New("invalid lot")
)

// Transactional conflict errors. The whole transaction aborts with no writes.
var (
	ErrAlreadyFulfilled = errors.New("order has already been fulfilled")
	ErrStaleUnit        = errors.New("unit was claimed by another fulfillment")
	ErrLotNotFound      = errors.New("inventory lot not found")
	ErrLotOverdrawn     = errors.New("lot would sell more units than were bought")
	ErrSerialTaken      = errors.New("serial already registered")
)

// IsOperatorError reports whether err is recoverable by scanning again.
func IsOperatorError(err error) bool {
	return errors.Is(err, ErrDuplicateScan) ||
		errors.Is(err, ErrSerialNotFound) ||
		errors.Is(err, ErrUnitUnavailable) ||
		errors.Is(err, ErrNoMatchingLineItem)
}

// IsConflict reports whether err aborted a transaction because of concurrent
// state the operator must re-check.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyFulfilled) ||
		errors.Is(err, ErrStaleUnit) ||
		errors.Is(err, ErrLotNotFound) ||
		errors.Is(err, ErrLotOverdrawn) ||
		errors.Is(err, ErrSerialTaken)
}
