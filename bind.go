package arbor

// AccessLeaf adapts a leaf to a get/set function pair, for binding onto
// view-model style accessors. Pure delegation to Read and Write.
func AccessLeaf[T comparable](l *Leaf[T]) (get func() T, set func(T)) {
	return l.Read, l.Write
}

// AccessTwig adapts a twig to a getter.
func AccessTwig[T comparable](tw *Twig[T]) func() (T, error) {
	return tw.Value
}
