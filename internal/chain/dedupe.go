package chain

// Dedupe collapses the candidates of one detection pass so that a single
// trigger never yields two chains of the same type. The first occurrence
// wins; the same trigger may still seed chains of different types.
func Dedupe(candidates []Chain) []Chain {
	if len(candidates) < 2 {
		return candidates
	}
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		k := c.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
