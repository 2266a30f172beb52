package item

// Requirement pairs an ItemKey with a Validator and an ordering flag.
// Ordered requirements impose an execution-order edge on the providing
// feature; unordered requirements only assert eventual existence.
type Requirement struct {
	Key       ItemKey
	Validator Validator
	Ordered   bool
}

// Ordered builds a requirement that imposes an ordering edge on its
// provider.
func Ordered(key ItemKey, v Validator) Requirement {
	return Requirement{Key: key, Validator: v, Ordered: true}
}

// Unordered builds a requirement satisfied by existence anywhere in the
// final layer, with no ordering constraint on its provider.
func Unordered(key ItemKey, v Validator) Requirement {
	return Requirement{Key: key, Validator: v, Ordered: false}
}
