package fairness

// Shuffle returns a permutation of 0..n-1 using a forward Fisher-Yates
// shuffle: for position i it draws j = i + NextUint32() mod (n-i) and swaps.
// Position i is final after step i, so a prefix of length k only depends on
// the first k draws. Modulo bias is accepted.
func Shuffle(src Source, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < n-1; i++ {
		remaining := uint32(n - i)
		j := i + int(src.NextUint32()%remaining)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}
