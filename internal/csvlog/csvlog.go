// Package csvlog writes the per-run process data files.
//
// Every call opens the file in append mode, writes and closes it again, so a
// row is on disk as soon as Append returns even if the process dies next.
package csvlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Header is the first line of every run file.
const Header = "timestamp, time_elapsed, pv, sv"

const filePerm = 0o644

// Row is one data line.
type Row struct {
	Timestamp    time.Time
	Elapsed      time.Duration
	ProcessValue float64
	Setpoint     float64
}

// LogError reports a failed write to a run file.
type LogError struct {
	Path string
	Err  error
}

func (e *LogError) Error() string { return fmt.Sprintf("log %s: %v", e.Path, e.Err) }

func (e *LogError) Unwrap() error { return e.Err }

// Writer appends rows to run files. It holds no open handles.
type Writer struct{}

func NewWriter() *Writer { return &Writer{} }

// Start creates the parent directory and appends the header line.
func (w *Writer) Start(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &LogError{Path: path, Err: err}
		}
	}
	return w.write(path, Header+"\n")
}

// Append writes one row.
func (w *Writer) Append(path string, r Row) error {
	return w.write(path, FormatRow(r))
}

func (w *Writer) write(path, line string) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return &LogError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &LogError{Path: path, Err: cerr}
		}
	}()
	if _, err := f.WriteString(line); err != nil {
		return &LogError{Path: path, Err: err}
	}
	return nil
}

// FormatRow renders r as "timestamp, time_elapsed, pv, sv\n" with raw float
// seconds and two-decimal temperatures.
func FormatRow(r Row) string {
	return fmt.Sprintf("%s, %s, %.2f, %.2f\n",
		formatSeconds(EpochSeconds(r.Timestamp)),
		formatSeconds(r.Elapsed.Seconds()),
		r.ProcessValue,
		r.Setpoint,
	)
}

// EpochSeconds returns t as fractional Unix seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
