package props

// DeepMerge returns a new bag holding base overlaid with over. Nested bags
// present on both sides are merged recursively, everything else (scalars,
// lists, bag replacing scalar and vice versa) is overwritten by over.
// Neither argument is modified.
func DeepMerge(base, over Bag) Bag {
	out := base.Clone()
	if out == nil {
		out = make(Bag, len(over))
	}
	for k, ov := range over {
		if nested, ok := ov.Bag(); ok {
			if existing, ok := out[k].Bag(); ok {
				out[k] = Object(DeepMerge(existing, nested))
				continue
			}
		}
		out[k] = ov.Clone()
	}
	return out
}
