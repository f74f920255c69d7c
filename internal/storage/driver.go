// Package storage implements an embedded table engine that persists typed,
// tabular data as one escaped-CSV file per table.
//
// What: A driver owning all tables of a storage directory, with a typed
// column model (Numeric, Integer, Real, Text, Blob), per-table CRUD
// handles, and a private text format whose fields escape backslash,
// comma, CR, and LF with a leading backslash.
// How: The driver loads every table file eagerly at Open, all CRUD runs
// against in-memory row lists, and an explicit Commit rewrites every
// table file. Rows carry a tagged value union validated at the typed
// setter boundary; every read path hands out defensive copies.
// Why: Favor a small, explicit load-on-open / flush-on-commit model over
// page managers and journals: it keeps the engine understandable and
// sufficient for embedded single-writer use cases.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

const (
	tableExt     = ".csv"
	tableExtGzip = ".csv.gz"
)

// tableState is the driver-owned in-memory form of one table. Handles
// reference it, never copy it.
type tableState struct {
	name       string
	header     *RowHeader
	rows       []*Row
	compressed bool // persists as .csv.gz
}

// Driver owns all tables of one storage directory. It is created per
// directory via Open, loads every table file eagerly, and writes
// everything back on Commit. The driver provides no internal locking;
// concurrent collaborators serialize their own access.
type Driver struct {
	dir    string
	id     uuid.UUID
	logger *slog.Logger
	opts   options

	tables  map[string]*tableState
	handles map[string]*Table // at most one handle per table name
	closed  bool
}

// Open loads every recognized table file under dir and returns a ready
// driver. Any load failure aborts construction; no partial driver is
// returned. dir must be an existing directory.
func Open(dir string, optFns ...Option) (*Driver, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("storage directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage directory %q is not a directory", dir)
	}

	d := &Driver{
		dir:     dir,
		id:      uuid.New(),
		logger:  opts.logger,
		opts:    opts,
		tables:  map[string]*tableState{},
		handles: map[string]*Table{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan storage directory: %w", err)
	}
	start := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, compressed, ok := tableFileName(entry.Name())
		if !ok {
			continue
		}
		if prev, dup := d.tables[name]; dup {
			return nil, fmt.Errorf("table %q defined by both %s and %s files", name, fileExt(prev.compressed), fileExt(compressed))
		}
		t, err := d.loadTableFile(filepath.Join(dir, entry.Name()), name, compressed)
		if err != nil {
			return nil, err
		}
		d.tables[name] = t
		d.logger.Debug("table loaded", "driver", d.id, "table", name, "rows", len(t.rows), "compressed", compressed)
	}
	d.logger.Info("driver opened", "driver", d.id, "dir", dir, "tables", len(d.tables), "elapsed", time.Since(start))
	return d, nil
}

// tableFileName derives the table name from a file name. Files with any
// other extension are ignored at load time.
func tableFileName(file string) (name string, compressed, ok bool) {
	switch {
	case strings.HasSuffix(file, tableExtGzip):
		name = strings.TrimSuffix(file, tableExtGzip)
		compressed = true
	case strings.HasSuffix(file, tableExt):
		name = strings.TrimSuffix(file, tableExt)
	default:
		return "", false, false
	}
	return name, compressed, name != ""
}

func fileExt(compressed bool) string {
	if compressed {
		return tableExtGzip
	}
	return tableExt
}

func (d *Driver) loadTableFile(path, name string, compressed bool) (*tableState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	var gz *gzip.Reader
	if compressed {
		gz, err = gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("table file %s: %w", path, err)
		}
		r = gz
	}
	t, err := loadTable(r, name, path)
	if gz != nil {
		// Close carries the checksum verdict of a fully consumed stream.
		if cerr := gz.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("table file %s: %w", path, cerr)
		}
	}
	if err != nil {
		return nil, err
	}
	t.compressed = compressed
	return t, nil
}

// ID returns the identity minted for this driver instance at Open. It
// appears in structured logs and lets embedding applications tell driver
// instances apart.
func (d *Driver) ID() uuid.UUID { return d.id }

// Dir returns the storage directory the driver was opened on.
func (d *Driver) Dir() string { return d.dir }

// GetTable returns the handle for a loaded or created table. Repeated
// calls for the same name return the same handle instance. Unknown names
// fail with ErrTableNotFound.
func (d *Driver) GetTable(name string) (*Table, error) {
	if d.closed {
		return nil, ErrDriverClosed
	}
	state, ok := d.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	h, ok := d.handles[name]
	if !ok {
		h = &Table{drv: d, state: state}
		d.handles[name] = h
	}
	return h, nil
}

// CreateTable registers an empty table with the given header and returns
// its handle. It fails with ErrTableExists when the name is taken. The
// name becomes the file base name, so it must not contain path
// separators.
func (d *Driver) CreateTable(name string, header *RowHeader) (*Table, error) {
	if d.closed {
		return nil, ErrDriverClosed
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	if _, exists := d.tables[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, name)
	}
	state := &tableState{name: name, header: header, compressed: d.opts.compressNew}
	d.tables[name] = state
	h := &Table{drv: d, state: state}
	d.handles[name] = h
	d.logger.Debug("table created", "driver", d.id, "table", name, "columns", header.Len())
	return h, nil
}

// ListTables returns the registered table names sorted lexically.
func (d *Driver) ListTables() []string {
	if len(d.tables) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.tables))
	for n := range d.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Commit writes every registered table to its file, unconditionally
// overwriting prior contents. Files are written concurrently (one
// goroutine per table, bounded by WithCommitWorkers) with no ordering
// guarantee; Commit returns only when every file is written. There is no
// atomic swap or journal, so a failure mid-commit can leave a file
// partially written.
func (d *Driver) Commit() error {
	if d.closed {
		return ErrDriverClosed
	}
	start := time.Now()
	var g errgroup.Group
	g.SetLimit(d.opts.commitWorkers)
	for _, t := range d.tables {
		t := t
		g.Go(func() error { return d.writeTableFile(t) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	d.logger.Info("commit", "driver", d.id, "tables", len(d.tables), "elapsed", time.Since(start))
	return nil
}

func (d *Driver) writeTableFile(t *tableState) error {
	path := filepath.Join(d.dir, t.name+fileExt(t.compressed))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write table %q: %w", t.name, err)
	}
	var w io.Writer = f
	var gz *gzip.Writer
	if t.compressed {
		gz = gzip.NewWriter(f)
		w = gz
	}
	if err := writeTable(w, t); err != nil {
		f.Close()
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("write table %q: %w", t.name, err)
		}
	}
	return f.Close()
}

// Close releases the driver. It does NOT commit: un-committed in-memory
// changes are silently discarded. The driver is unusable afterwards.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.tables = nil
	d.handles = nil
	d.logger.Info("driver closed", "driver", d.id)
	return nil
}

// IsParseError reports whether err carries a *ParseError, letting
// embedding code distinguish a corrupt table file from a missing or
// unreadable directory at Open.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
