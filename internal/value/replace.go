package value

// ReplaceWith resolves the source's `try_replace_with` ambiguity (§9): it
// replaces the contents of *dst with fn(*dst), but only if fn succeeds. On
// error, *dst is left exactly as it was — fn must not be able to observe a
// partially-applied update, regardless of what it does internally before
// returning the error.
func ReplaceWith[V any](dst *V, fn func(V) (V, error)) error {
	cur := *dst

	next, err := fn(cur)
	if err != nil {
		return err
	}

	*dst = next

	return nil
}
