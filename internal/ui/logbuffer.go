package ui

import "sync"

// LogBuffer keeps the most recent lines of console output.
type LogBuffer struct {
	mu       sync.RWMutex
	lines    []string
	maxLines int
}

// NewLogBuffer creates a new log buffer
func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines < 1 {
		maxLines = 1
	}
	return &LogBuffer{
		lines:    make([]string, 0, maxLines),
		maxLines: maxLines,
	}
}

// Append adds a line, evicting the oldest one when full.
func (lb *LogBuffer) Append(line string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(lb.lines) >= lb.maxLines {
		copy(lb.lines, lb.lines[1:])
		lb.lines = lb.lines[:len(lb.lines)-1]
	}
	lb.lines = append(lb.lines, line)
}

// GetAll returns all lines in the buffer
func (lb *LogBuffer) GetAll() []string {
	return lb.GetLast(lb.Len())
}

// GetLast returns the last n lines
func (lb *LogBuffer) GetLast(n int) []string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if n > len(lb.lines) {
		n = len(lb.lines)
	}
	result := make([]string, n)
	copy(result, lb.lines[len(lb.lines)-n:])
	return result
}

// Len returns the number of buffered lines.
func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.lines)
}

// Clear drops every line.
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.lines = lb.lines[:0]
}
