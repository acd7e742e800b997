package hook

// Ref holds the value a fold dispatch threads through its extensions.
// Each extension may read and replace it. A Ref belongs to a single
// dispatch call and must not be retained afterwards.
type Ref[T any] struct {
	v T
}

// NewRef returns a Ref holding v.
func NewRef[T any](v T) *Ref[T] {
	return &Ref[T]{v: v}
}

// Get returns the held value.
func (r *Ref[T]) Get() T { return r.v }

// Set replaces the held value.
func (r *Ref[T]) Set(v T) { r.v = v }
