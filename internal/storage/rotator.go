// Package storage archives raw match payloads to rotating JSONL files. Files are
// written in hot/ and moved to warm/ when they are rotated or closed.
package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"

	"team-ingest/internal/logging"
)

const (
	// Rotation triggers
	DefaultMaxPayloadsPerFile = 1000
	DefaultMaxFileAge         = 1 * time.Hour
)

// Option configures a FileRotator.
type Option func(*FileRotator)

func WithMaxPayloadsPerFile(n int) Option {
	return func(r *FileRotator) {
		if n > 0 {
			r.maxPayloads = n
		}
	}
}

func WithMaxFileAge(d time.Duration) Option {
	return func(r *FileRotator) {
		if d > 0 {
			r.maxAge = d
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(r *FileRotator) {
		r.logger = l
	}
}

// FileRotator handles writing payloads to rotating JSONL files
type FileRotator struct {
	mu sync.Mutex

	hotDir  string // Active writes
	warmDir string // Closed files

	maxPayloads int
	maxAge      time.Duration
	logger      *logging.Logger
	now         func() time.Time

	// Current file state
	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	payloadCount  int
	fileOpenedAt  time.Time
	seq           int
}

// NewFileRotator creates hot/ and warm/ under baseDir and opens the first file.
func NewFileRotator(baseDir string, opts ...Option) (*FileRotator, error) {
	r := &FileRotator{
		hotDir:      filepath.Join(baseDir, "hot"),
		warmDir:     filepath.Join(baseDir, "warm"),
		maxPayloads: DefaultMaxPayloadsPerFile,
		maxAge:      DefaultMaxFileAge,
		logger:      logging.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("archive")

	for _, dir := range []string{r.hotDir, r.warmDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	if err := r.rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Archive appends one payload as a JSONL line, flushes, and rotates if a limit is hit.
func (r *FileRotator) Archive(matchID string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return errors.New("archive is closed")
	}

	line, err := json.Marshal(RawPayload{MatchID: matchID, FetchedAt: r.now().UTC(), Payload: payload})
	if err != nil {
		return errors.Wrapf(err, "failed to encode payload for %s", matchID)
	}

	if _, err := r.currentWriter.Write(line); err != nil {
		return errors.Wrap(err, "failed to write payload")
	}
	if err := r.currentWriter.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "failed to write newline")
	}
	if err := r.currentWriter.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush")
	}

	r.payloadCount++
	if r.shouldRotate() {
		return r.rotate()
	}
	return nil
}

func (r *FileRotator) shouldRotate() bool {
	if r.currentFile == nil {
		return true
	}
	if r.payloadCount >= r.maxPayloads {
		return true
	}
	return r.now().Sub(r.fileOpenedAt) >= r.maxAge
}

// rotate closes the current file into warm/ and opens a new one in hot/.
func (r *FileRotator) rotate() error {
	if r.currentFile != nil {
		if err := r.closeCurrent(); err != nil {
			return err
		}
	}

	r.seq++
	filename := fmt.Sprintf("raw_matches_%s_%03d.jsonl", r.now().Format("2006-01-02_15-04-05"), r.seq)
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return errors.Wrap(err, "failed to create new file")
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024)
	r.payloadCount = 0
	r.fileOpenedAt = r.now()

	r.logger.Debug("opened archive file", "file", filename)
	return nil
}

// closeCurrent flushes and closes the open file, moving it to warm/ or removing it if empty.
func (r *FileRotator) closeCurrent() error {
	if err := r.currentWriter.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush before close")
	}
	if err := r.currentFile.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	r.currentFile = nil

	name := filepath.Base(r.currentPath)
	if r.payloadCount == 0 {
		os.Remove(r.currentPath)
		return nil
	}

	warmPath := filepath.Join(r.warmDir, name)
	if err := os.Rename(r.currentPath, warmPath); err != nil {
		return errors.Wrap(err, "failed to move to warm storage")
	}
	r.logger.Info("moved archive file to warm storage", "file", name, "payloads", r.payloadCount)
	return nil
}

// Close flushes and closes the current file
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return nil
	}
	return r.closeCurrent()
}

// Stats returns the payload count and name of the open file.
func (r *FileRotator) Stats() (payloadsInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payloadCount, filepath.Base(r.currentPath)
}

// WarmFiles lists closed archive files, oldest first.
func (r *FileRotator) WarmFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.warmDir, "raw_matches_*.jsonl"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list warm files")
	}
	return matches, nil
}
