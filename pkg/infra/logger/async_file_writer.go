package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AsyncFileWriter decouples log emission from disk writes so the
// validation hot path never blocks on file I/O. Entries queue on a
// buffered channel; a single goroutine drains it and flushes on a timer.
type AsyncFileWriter struct {
	writer  *bufio.Writer
	file    *os.File
	mu      sync.Mutex
	logChan chan []byte
	done    chan struct{}
}

func NewAsyncFileWriter(logFile string, bufferSize int) (*AsyncFileWriter, error) {
	file, err := os.OpenFile(filepath.Clean(logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	aw := &AsyncFileWriter{
		writer:  bufio.NewWriterSize(file, bufferSize),
		file:    file,
		logChan: make(chan []byte, 1000),
		done:    make(chan struct{}),
	}
	go aw.drain()
	return aw, nil
}

// Write queues the entry. A full queue drops the entry rather than block
// the caller.
func (aw *AsyncFileWriter) Write(p []byte) (int, error) {
	entry := make([]byte, len(p))
	copy(entry, p)
	select {
	case aw.logChan <- entry:
	default:
	}
	return len(p), nil
}

func (aw *AsyncFileWriter) drain() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry := <-aw.logChan:
			aw.mu.Lock()
			if _, err := aw.writer.Write(entry); err != nil {
				fmt.Fprintf(os.Stderr, "log write failed: %v\n", err)
			}
			aw.mu.Unlock()
		case <-ticker.C:
			aw.mu.Lock()
			aw.writer.Flush()
			aw.mu.Unlock()
		case <-aw.done:
			aw.mu.Lock()
			for {
				select {
				case entry := <-aw.logChan:
					aw.writer.Write(entry)
				default:
					aw.writer.Flush()
					aw.mu.Unlock()
					return
				}
			}
		}
	}
}

// Close flushes pending entries and releases the file.
func (aw *AsyncFileWriter) Close() error {
	close(aw.done)
	aw.mu.Lock()
	defer aw.mu.Unlock()
	aw.writer.Flush()
	return aw.file.Close()
}
