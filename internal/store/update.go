package store

type updateKind int

const (
	kindNone updateKind = iota
	kindReplace
	kindPatch
	kindClear
)

// Update is a tagged change to a store's data. Build one with Replace, Patch,
// or Clear; the zero Update changes nothing.
type Update[T any] struct {
	kind  updateKind
	value T
	patch func(*T)
}

// Replace swaps the data for v.
func Replace[T any](v T) Update[T] {
	return Update[T]{kind: kindReplace, value: v}
}

// Patch edits the data in place. When the store holds no data, fn receives the
// zero value and the result becomes the data.
func Patch[T any](fn func(*T)) Update[T] {
	return Update[T]{kind: kindPatch, patch: fn}
}

// Clear drops the data.
func Clear[T any]() Update[T] {
	return Update[T]{kind: kindClear}
}

// IsClear reports whether u drops the data.
func (u Update[T]) IsClear() bool {
	return u.kind == kindClear
}
