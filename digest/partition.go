package digest

// Partition groups items into balanced, order-preserving chapters of at most maxPerChapter items.
// When a plain ceil split would leave chapters under half full, it falls back to pairs so that no
// chapter degenerates into a single item. maxPerChapter <= 0 disables chaptering.
func Partition[T any](items []T, maxPerChapter int) [][]T {
	if maxPerChapter <= 0 || len(items) <= maxPerChapter {
		return [][]T{items}
	}

	n := (len(items) + maxPerChapter - 1) / maxPerChapter
	if float64(len(items))/float64(n) < float64(maxPerChapter)*0.5 {
		n = max(2, (len(items)+1)/2)
	}

	base := len(items) / n
	rem := len(items) % n
	out := make([][]T, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		out = append(out, items[start:start+size])
		start += size
	}
	return out
}
