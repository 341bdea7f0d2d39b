// Package file stores each account's transaction log as a plain text file,
// one record per line, in the directory given by Config.Dir.
package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"atm-ledger/pkg/ledger"

	"github.com/spf13/afero"
)

// Suffix is appended to the account number to form the log file name.
const Suffix = "_transactions.txt"

// Config holds configuration for the file store.
type Config struct {
	// Name is the backend identifier (default: "file")
	Name string

	// Dir is the directory holding the log files (default: ".")
	Dir string

	// Fs is the filesystem to use (default: the OS filesystem)
	Fs afero.Fs

	// Location is used to parse timestamps (default: time.Local)
	Location *time.Location

	// NoSync skips fsync after each append. Only for tests and throwaway demos.
	NoSync bool
}

// Store hands out file-backed logs.
type Store struct {
	config Config
}

// NewStore creates a file store. The directory is created if missing.
func NewStore(config Config) (*Store, error) {
	if config.Name == "" {
		config.Name = "file"
	}
	if config.Dir == "" {
		config.Dir = "."
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	if err := config.Fs.MkdirAll(config.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("file store: create dir %s: %w", config.Dir, err)
	}

	return &Store{config: config}, nil
}

// Open returns the log for accountNumber. No file is created until the first Append.
func (s *Store) Open(accountNumber string) ledger.TransactionLog {
	return &Log{
		fs:     s.config.Fs,
		path:   s.Path(accountNumber),
		loc:    s.config.Location,
		noSync: s.config.NoSync,
	}
}

// Path returns the log file path for accountNumber.
func (s *Store) Path(accountNumber string) string {
	return filepath.Join(s.config.Dir, accountNumber+Suffix)
}

// Name returns the backend name.
func (s *Store) Name() string {
	return s.config.Name
}

// Close is a no-op; files are opened and closed per operation.
func (s *Store) Close() error {
	return nil
}

// Log is the file-backed log of one account.
type Log struct {
	fs     afero.Fs
	path   string
	loc    *time.Location
	noSync bool
}

// Append opens the file in append mode, writes one line, syncs and closes it.
// If any step fails the file is cut back to its previous size, or removed if
// this call created it, so a failed append leaves no record behind. When that
// cleanup fails too the error matches ledger.ErrIndeterminate.
func (l *Log) Append(ctx context.Context, tx ledger.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, statErr := l.fs.Stat(l.path)
	created := errors.Is(statErr, fs.ErrNotExist)

	f, err := l.fs.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o640)
	if err != nil {
		return fmt.Errorf("file log: open %s: %w", l.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file log: stat %s: %w", l.path, err)
	}
	size := info.Size()

	if err := l.write(f, tx); err != nil {
		var cerr error
		if created {
			f.Close()
			cerr = l.fs.Remove(l.path)
		} else {
			cerr = f.Truncate(size)
			f.Close()
		}
		return l.undo(err, cerr)
	}

	if err := f.Close(); err != nil {
		err = fmt.Errorf("file log: close %s: %w", l.path, err)
		if created {
			return l.undo(err, l.fs.Remove(l.path))
		}
		return l.undo(err, l.truncate(size))
	}
	return nil
}

func (l *Log) write(f afero.File, tx ledger.Transaction) error {
	if _, err := f.WriteString(tx.Record() + "\n"); err != nil {
		return fmt.Errorf("file log: write %s: %w", l.path, err)
	}
	if !l.noSync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("file log: sync %s: %w", l.path, err)
		}
	}
	return nil
}

// truncate reopens the file and cuts it back to size.
func (l *Log) truncate(size int64) error {
	f, err := l.fs.OpenFile(l.path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// undo returns err unchanged when cleanup succeeded.
func (l *Log) undo(err, cleanupErr error) error {
	if cleanupErr == nil {
		return err
	}
	return fmt.Errorf("%w: %w (cleanup %s: %v)", ledger.ErrIndeterminate, err, l.path, cleanupErr)
}

// ReadAll opens the file read-only and parses every line in order.
func (l *Log) ReadAll(ctx context.Context) ([]ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := l.fs.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ledger.ErrLogNotFound
		}
		return nil, fmt.Errorf("file log: open %s: %w", l.path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("file log: read %s: %w", l.path, err)
	}

	txs, err := ledger.ParseRecords(lines, l.loc)
	if err != nil {
		return nil, fmt.Errorf("file log %s: %w", l.path, err)
	}
	return txs, nil
}

// Path returns the file path of this log.
func (l *Log) Path() string {
	return l.path
}
