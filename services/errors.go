package services

import "errors"

var (
	// ErrProductNotFound means the catalog has no such product.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidProductState means the product is not approved for listing or
	// carries no paid duration.
	ErrInvalidProductState = errors.New("product not eligible for assignment")
	// ErrDuplicateAssignment means the product already occupies an active slot.
	ErrDuplicateAssignment = errors.New("product already assigned to an active slot")
	// ErrSlotConflict means a conditional update lost the race to a concurrent
	// assignment or reclaim. Callers re-read and retry once before queueing.
	ErrSlotConflict = errors.New("slot claimed concurrently")
	// ErrSlotNotFound means the slot number is outside the seeded pool.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrSlotNotActive means the operation needs an occupied slot.
	ErrSlotNotActive = errors.New("slot has no active assignment")
	// ErrFinalizeFailed means the assignment history write failed during
	// reclaim. The slot is left active and the sweep retries next tick.
	ErrFinalizeFailed = errors.New("assignment finalize failed")
)
