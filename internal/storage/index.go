package storage

import (
	"encoding/binary"
	"fmt"
)

// The sample index is the per-segment table of sample durations, sizes, and
// key-frame flags persisted in the catalog next to each recording row. Each
// sample is two uvarints: duration_90k shifted left one with the key-frame
// flag in the low bit, then the payload size in bytes. Sample start times
// are recovered by accumulating durations.

// IndexEntry is one decoded sample index entry.
type IndexEntry struct {
	Start90k    int64
	Duration90k int64
	Bytes       int
	IsKey       bool
}

func appendIndexEntry(index []byte, duration90k int64, size int, isKey bool) []byte {
	v := uint64(duration90k) << 1
	if isKey {
		v |= 1
	}
	index = binary.AppendUvarint(index, v)
	return binary.AppendUvarint(index, uint64(size))
}

// ParseIndex decodes a sample index blob.
func ParseIndex(index []byte) ([]IndexEntry, error) {
	var entries []IndexEntry
	var start int64
	for len(index) > 0 {
		v, n := binary.Uvarint(index)
		if n <= 0 {
			return nil, fmt.Errorf("storage: truncated sample index")
		}
		index = index[n:]
		size, n := binary.Uvarint(index)
		if n <= 0 {
			return nil, fmt.Errorf("storage: truncated sample index")
		}
		index = index[n:]

		duration := int64(v >> 1)
		entries = append(entries, IndexEntry{
			Start90k:    start,
			Duration90k: duration,
			Bytes:       int(size),
			IsKey:       v&1 != 0,
		})
		start += duration
	}
	return entries, nil
}
