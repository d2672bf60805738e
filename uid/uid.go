package uid

// UID mints unique string ids.
type UID interface {
	New() (string, error)
}
