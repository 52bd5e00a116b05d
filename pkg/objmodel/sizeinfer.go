package objmodel

import "sort"

// synthesizeSizes fills in Symbol.Size for every symbol in every section:
// size is the address of the next symbol in the same section (ascending
// order) minus this symbol's address, or section end minus address for
// the last symbol. Symbols at identical addresses (aliases) all receive
// the same size, the size of the shared body.
func synthesizeSizes(sections []*Section) {
	for _, sec := range sections {
		if len(sec.Symbols) == 0 {
			continue
		}

		sort.SliceStable(sec.Symbols, func(i, j int) bool {
			return sec.Symbols[i].Address < sec.Symbols[j].Address
		})

		// Compute the size for each distinct address, then fan it out to
		// every alias sharing that address.
		i := 0
		for i < len(sec.Symbols) {
			j := i
			for j < len(sec.Symbols) && sec.Symbols[j].Address == sec.Symbols[i].Address {
				j++
			}

			var size uint64
			if j < len(sec.Symbols) {
				size = sec.Symbols[j].Address - sec.Symbols[i].Address
			} else {
				size = sec.End() - sec.Symbols[i].Address
			}

			for k := i; k < j; k++ {
				if sec.Symbols[k].Size == 0 {
					sec.Symbols[k].Size = size
				}
			}

			i = j
		}
	}
}
