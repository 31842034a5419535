package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrTransitionConflict is returned when a conditional status update matched zero
// rows: the claim already moved to another status. Callers must surface this as a
// conflict, never retry blindly.
var ErrTransitionConflict = errors.New("claim status transition conflict")
