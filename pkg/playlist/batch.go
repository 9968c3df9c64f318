package playlist

import (
	"math/rand"

	"github.com/igolaizola/mixtape/pkg/catalog"
)

// Shuffle returns a shuffled copy of records.
func Shuffle(records []catalog.Record, rnd *rand.Rand) []catalog.Record {
	out := make([]catalog.Record, len(records))
	copy(out, records)
	rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Batches splits records into contiguous chunks of at most size records.
// The chunks share the backing array of records.
func Batches(records []catalog.Record, size int) [][]catalog.Record {
	if size <= 0 {
		size = len(records)
	}
	var batches [][]catalog.Record
	for i := 0; i < len(records); i += size {
		end := i + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[i:end:end])
	}
	return batches
}
