// Package batch splits ordered work items into bounded-size chunks.
package batch

import (
	"github.com/visionkit/describe-client/pkg/vision"
)

// Chunk is a bounded group of items submitted together in one service
// call. Index is 0-based and contiguous across the chunks of one run;
// IDs and Payloads are aligned and preserve the original item order.
type Chunk struct {
	Index    int
	IDs      []string
	Payloads [][]byte
}

// Size returns the number of items in the chunk.
func (c Chunk) Size() int {
	return len(c.IDs)
}

// Split partitions items into chunks of at most size items each. No
// item is dropped, duplicated, or reordered. An empty input yields no
// chunks. size must be positive; a non-positive size is a caller
// contract violation.
func Split(items []vision.Item, size int) []Chunk {
	if size <= 0 {
		panic("batch: chunk size must be positive")
	}

	if len(items) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		chunk := Chunk{
			Index:    len(chunks),
			IDs:      make([]string, 0, end-start),
			Payloads: make([][]byte, 0, end-start),
		}
		for _, item := range items[start:end] {
			chunk.IDs = append(chunk.IDs, item.ID)
			chunk.Payloads = append(chunk.Payloads, item.Payload)
		}
		chunks = append(chunks, chunk)
	}

	return chunks
}
