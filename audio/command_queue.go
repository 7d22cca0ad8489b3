package audio

import (
	"sync/atomic"
)

// commandQueue is a wait-free single-producer single-consumer ring of commands.
// The editor thread pushes, the audio thread pops.
type commandQueue struct {
	commands []Command
	mask     uint32

	_     [64]byte
	write atomic.Uint32
	_     [60]byte
	read  atomic.Uint32
	_     [60]byte

	dropped atomic.Uint64
}

func newCommandQueue(size int) *commandQueue {
	if size <= 0 || size&(size-1) != 0 || size > 1<<30 {
		panic("command queue size must be a power of 2")
	}
	return &commandQueue{
		commands: make([]Command, size),
		mask:     uint32(size - 1),
	}
}

// tryPush enqueues cmd and reports whether there was room. It never blocks.
func (q *commandQueue) tryPush(cmd Command) bool {
	write := q.write.Load()
	if write-q.read.Load() == uint32(len(q.commands)) {
		return false
	}
	q.commands[write&q.mask] = cmd
	q.write.Store(write + 1)
	return true
}

// push is tryPush that counts a full queue as a dropped command.
func (q *commandQueue) push(cmd Command) bool {
	if q.tryPush(cmd) {
		return true
	}
	q.dropped.Add(1)
	return false
}

// pop copies up to len(dst) commands into dst in FIFO order and returns the count.
func (q *commandQueue) pop(dst []Command) int {
	read := q.read.Load()
	write := q.write.Load()
	n := 0
	for read != write && n < len(dst) {
		dst[n] = q.commands[read&q.mask]
		read++
		n++
	}
	q.read.Store(read)
	return n
}

func (q *commandQueue) len() int {
	return int(q.write.Load() - q.read.Load())
}
