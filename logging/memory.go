package logging

import (
	"fmt"
	"sync"
	"time"
)

// Entry is one captured debug log line, kept in memory for the web UI.
type Entry struct {
	Time     time.Time
	Protocol string
	Message  string
}

const memoryLogSize = 500

// memoryLog is a fixed-size ring of recent entries. It captures every
// debug call, even when no file logger is configured, so the debug page
// has something to show out of the box.
type memoryLog struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	mirror  *FileLogger
}

var memLog = &memoryLog{entries: make([]Entry, memoryLogSize)}

func (m *memoryLog) add(protocol, message string) {
	m.mu.Lock()
	m.entries[m.next] = Entry{Time: time.Now(), Protocol: protocol, Message: message}
	m.next++
	if m.next == len(m.entries) {
		m.next = 0
		m.full = true
	}
	mirror := m.mirror
	m.mu.Unlock()

	if mirror != nil {
		mirror.LogTagged(protocol, message)
	}
}

func (m *memoryLog) recent() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.full {
		result := make([]Entry, m.next)
		copy(result, m.entries[:m.next])
		return result
	}
	result := make([]Entry, 0, len(m.entries))
	result = append(result, m.entries[m.next:]...)
	result = append(result, m.entries[:m.next]...)
	return result
}

func (m *memoryLog) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.full = false
}

// record captures a formatted message in the memory ring.
func record(protocol, format string, args ...interface{}) {
	memLog.add(protocol, fmt.Sprintf(format, args...))
}

// Recent returns the captured entries, oldest first.
func Recent() []Entry {
	return memLog.recent()
}

// ClearRecent discards the captured entries.
func ClearRecent() {
	memLog.clear()
}

// SetFileLogger mirrors captured entries to a file logger.
// Pass nil to stop mirroring.
func SetFileLogger(l *FileLogger) {
	memLog.mu.Lock()
	memLog.mirror = l
	memLog.mu.Unlock()
}
