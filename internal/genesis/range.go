package genesis

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// maxRangeHint bounds the up-front allocation for very wide scans.
const maxRangeHint = 1024

// SplitRange splits a block range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0, rangeCapacity(from, to, batchSize))
	for start := from; ; {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
		start = end + 1
	}
}

// rangeCapacity is the number of batches in [from, to], capped at maxRangeHint.
func rangeCapacity(from, to, batchSize uint64) int {
	batches := (to - from) / batchSize
	if batches >= maxRangeHint {
		return maxRangeHint
	}
	return int(batches) + 1
}
