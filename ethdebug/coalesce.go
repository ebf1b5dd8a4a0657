package ethdebug

// Coalesce groups consecutive instructions with the same source range. It
// runs after Emit and leaves the instructions untouched; concatenating the
// offsets of the returned ranges gives back every instruction offset in order.
func Coalesce(instructions []Instruction) []Range {
	var ranges []Range
	for _, instruction := range instructions {
		ref := instruction.SourceRef()
		if n := len(ranges); n > 0 && sameSource(ranges[n-1].Source, ref) {
			ranges[n-1].Offsets = append(ranges[n-1].Offsets, instruction.Offset)
			continue
		}
		ranges = append(ranges, Range{Source: ref, Offsets: []int{instruction.Offset}})
	}
	return ranges
}

// Offsets flattens ranges back into instruction offsets.
func Offsets(ranges []Range) []int {
	var offsets []int
	for _, r := range ranges {
		offsets = append(offsets, r.Offsets...)
	}
	return offsets
}

func sameSource(a, b *SourceRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
