package domain

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	ID    int32
	Staff bool
}
