package copyengine

import "log"

// stagingBuffer holds the bytes of one transfer between their read and their
// write. Offsets are relative to the start of the transfer. Reads are
// chunked on the source address, so read chunk i covers the offsets whose
// source address falls in the i-th chunk-size block touched by the transfer.
// A chunk may be read in several pieces when it spans pages; it is done once
// all of its bytes are filled.
type stagingBuffer struct {
	data      []byte
	skew      uint64
	chunkSize uint64
	filled    []uint64
	readsDone []bool
	numDone   int
}

func newStagingBuffer(srcAddr, length, chunkSize uint64) *stagingBuffer {
	b := &stagingBuffer{
		data:      make([]byte, length),
		skew:      srcAddr % chunkSize,
		chunkSize: chunkSize,
	}
	n := b.chunkIndex(length-1) + 1
	b.filled = make([]uint64, n)
	b.readsDone = make([]bool, n)

	return b
}

// newFilledStagingBuffer creates a buffer whose reads are all done and whose
// bytes all hold value.
func newFilledStagingBuffer(length uint64, value byte) *stagingBuffer {
	b := &stagingBuffer{
		data:      make([]byte, length),
		chunkSize: length,
		filled:    []uint64{length},
		readsDone: []bool{true},
		numDone:   1,
	}

	for i := range b.data {
		b.data[i] = value
	}

	return b
}

func (b *stagingBuffer) chunkIndex(offset uint64) int {
	return int((b.skew + offset) / b.chunkSize)
}

func (b *stagingBuffer) numChunks() int {
	return len(b.readsDone)
}

// chunkLen is the number of bytes of the transfer in read chunk i.
func (b *stagingBuffer) chunkLen(i int) uint64 {
	start := uint64(0)
	if blockStart := uint64(i) * b.chunkSize; blockStart > b.skew {
		start = blockStart - b.skew
	}

	end := (uint64(i)+1)*b.chunkSize - b.skew
	if end > uint64(len(b.data)) {
		end = uint64(len(b.data))
	}

	return end - start
}

// fill stores the data returned by a read that starts at offset. The read
// must stay inside one chunk.
func (b *stagingBuffer) fill(offset uint64, data []byte) {
	size := uint64(len(data))
	if offset+size > uint64(len(b.data)) {
		log.Panicf("read data [%d, %d) exceeds the staging buffer of %d bytes",
			offset, offset+size, len(b.data))
	}

	i := b.chunkIndex(offset)
	if size > 0 && b.chunkIndex(offset+size-1) != i {
		log.Panicf("read data [%d, %d) spans more than one chunk",
			offset, offset+size)
	}

	if b.readsDone[i] || b.filled[i]+size > b.chunkLen(i) {
		log.Panicf("read chunk %d is filled twice", i)
	}

	copy(b.data[offset:], data)
	b.filled[i] += size

	if b.filled[i] == b.chunkLen(i) {
		b.readsDone[i] = true
		b.numDone++
	}
}

// ready tells if every read chunk that covers [offset, offset+size) is done.
func (b *stagingBuffer) ready(offset, size uint64) bool {
	if size == 0 {
		return true
	}

	first := b.chunkIndex(offset)
	last := b.chunkIndex(offset + size - 1)

	for i := first; i <= last; i++ {
		if !b.readsDone[i] {
			return false
		}
	}

	return true
}

// extract returns a copy of the bytes in [offset, offset+size). The range
// must be ready.
func (b *stagingBuffer) extract(offset, size uint64) []byte {
	if !b.ready(offset, size) {
		log.Panicf("extracting [%d, %d) before its reads are done",
			offset, offset+size)
	}

	data := make([]byte, size)
	copy(data, b.data[offset:offset+size])

	return data
}
