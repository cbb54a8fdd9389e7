package domain

// ErrNotFound is returned (possibly wrapped) when a scan, profile or derived
// view does not exist.
var ErrNotFound = errString("not found")

type errString string

func (e errString) Error() string { return string(e) }
