package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	filePrefix = "web-"
	fileSuffix = ".log"
	dateLayout = "2006-01-02"
)

// DailyFileWriter is an io.Writer that appends one entry per line to a
// file named web-YYYY-MM-DD.log inside a directory, rotating the file
// when the calendar day changes. Entries older than the retention window
// are pruned on startup and once per day thereafter.
//
// A filesystem failure never propagates to callers: the writer falls
// back to stderr so the process keeps logging.
type DailyFileWriter struct {
	dir       string
	retention int // days, <= 0 disables pruning

	mu        sync.Mutex
	file      *os.File
	fileDate  string
	lastPrune time.Time
	now       func() time.Time
}

// NewDailyFileWriter creates the log directory if needed and returns a
// writer rotating by calendar day. retentionDays <= 0 keeps files forever.
func NewDailyFileWriter(dir string, retentionDays int) (*DailyFileWriter, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &DailyFileWriter{
		dir:       dir,
		retention: retentionDays,
		now:       time.Now,
	}
	w.prune()
	return w, nil
}

// Write appends p to the current day's file, rotating first if the day
// has changed. On any file error the entry goes to stderr instead.
func (w *DailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := w.now().UTC().Format(dateLayout)
	if w.file == nil || w.fileDate != today {
		if err := w.rotate(today); err != nil {
			return os.Stderr.Write(p)
		}
	}
	n, err := w.file.Write(p)
	if err != nil {
		return os.Stderr.Write(p)
	}
	return n, nil
}

// Close closes the currently open log file, if any.
func (w *DailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate opens the file for date and, at most once per day, prunes old files.
// Caller holds w.mu.
func (w *DailyFileWriter) rotate(date string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	path := filepath.Join(w.dir, filePrefix+date+fileSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.fileDate = date

	if w.now().Sub(w.lastPrune) >= 24*time.Hour {
		w.pruneLocked()
	}
	return nil
}

// Prune removes log files whose filename date is older than the
// retention window. Errors are swallowed: pruning is best effort.
func (w *DailyFileWriter) prune() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked()
}

func (w *DailyFileWriter) pruneLocked() {
	w.lastPrune = w.now()
	if w.retention <= 0 {
		return
	}
	cutoff := w.now().UTC().AddDate(0, 0, -w.retention)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		fileDate, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}
