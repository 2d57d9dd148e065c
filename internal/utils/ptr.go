package utils

// Ptr returns a pointer to a copy of v. Handy for optional config
// fields that distinguish unset from false/zero.
func Ptr[T any](v T) *T {
	return &v
}
