package recording

import (
	"fmt"
	"sync"
	"time"
)

// node represents an internal linked list node of the line buffer.
type node struct {
	line *Line
	next *node
}

// Buffer is a thread-safe FIFO of recorded lines waiting to be written to
// storage. It keeps lines in arrival order and makes receive times
// non-decreasing, so that a wall clock stepping backwards does not reorder a
// recording.
type Buffer struct {
	capacity   int // Maximum number of lines to hold before a flush is due
	flushCount int // Number of lines removed by Flush

	mu   sync.Mutex
	head *node
	tail *node
	size int
}

// NewBuffer creates a line buffer that reports full at capacity lines and
// hands out flushCount lines per Flush.
//
// Returns an error if parameters are invalid.
func NewBuffer(capacity, flushCount int) (*Buffer, error) {
	if capacity <= 0 || flushCount <= 0 || flushCount > capacity {
		return nil, fmt.Errorf("invalid buffer parameters: bufferCap=%d, toFlush=%d", capacity, flushCount)
	}
	return &Buffer{
		capacity:   capacity,
		flushCount: flushCount,
	}, nil
}

// Insert appends a line. Returns an error if the line is nil.
func (b *Buffer) Insert(line *Line) error {
	if line == nil {
		return fmt.Errorf("cannot insert nil line")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := &node{line: line}
	if b.tail == nil {
		b.head, b.tail = n, n
		b.size++
		return nil
	}

	// Ensure temporal consistency
	if line.ReceivedAt.Before(b.tail.line.ReceivedAt) {
		line.ReceivedAt = b.tail.line.ReceivedAt.Add(time.Microsecond)
	}

	b.tail.next = n
	b.tail = n
	b.size++
	return nil
}

// IsFull returns true if the buffer has reached its capacity.
func (b *Buffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.size >= b.capacity
}

// Flush removes and returns the oldest lines from the buffer.
// Returns nil if the buffer is empty. When the buffer has grown past its
// capacity the overflow is included as well.
func (b *Buffer) Flush() []*Line {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == nil || b.size == 0 {
		return nil
	}

	count := b.flushCount
	if b.size > b.capacity {
		count += b.size - b.capacity
	}
	count = min(count, b.size)

	return b.take(count)
}

// DrainAll removes and returns all lines from the buffer.
// Returns nil if the buffer is empty.
func (b *Buffer) DrainAll() []*Line {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == nil || b.size == 0 {
		return nil
	}
	return b.take(b.size)
}

func (b *Buffer) take(count int) []*Line {
	results := make([]*Line, 0, count)
	current := b.head
	for i := 0; i < count && current != nil; i++ {
		results = append(results, current.line)
		current = current.next
	}

	b.head = current
	if b.head == nil {
		b.tail = nil
	}
	b.size -= len(results)
	return results
}

// Size returns the current number of lines in the buffer.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Clear removes all lines from the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = nil
	b.tail = nil
	b.size = 0
}
