package domain

import "errors"

// Sentinel errors that classify how a failed simulation should be handled.
// ErrNoData and ErrInsufficientHistory are recoverable (skip the symbol);
// ErrUnknownStrategy is fatal for the task that carried it.
var (
	ErrNoData              = errors.New("no price data")
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrUnknownStrategy's text is part of the failure-report contract;
	// consumers match on the "Unknown strategy" prefix.
	ErrUnknownStrategy = errors.New("Unknown strategy")
)
