package storage

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tmpDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "csvdb_driver_*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestOpenMissingDirectory(t *testing.T) {
	if _, err := Open(filepath.Join(tmpDir(t), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestOpenFileAsDirectory(t *testing.T) {
	dir := tmpDir(t)
	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(file); err == nil {
		t.Fatal("expected error when the path is a file")
	}
}

func TestOpenIgnoresForeignExtensions(t *testing.T) {
	dir := tmpDir(t)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "t.csv"), []byte("a\nTEXT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if got := d.ListTables(); len(got) != 1 || got[0] != "t" {
		t.Errorf("ListTables = %v, want [t]", got)
	}
}

func TestOpenAbortsOnCorruptFile(t *testing.T) {
	dir := tmpDir(t)
	if err := os.WriteFile(filepath.Join(dir, "good.csv"), []byte("a\nTEXT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("a\nVARCHAR\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(dir)
	if err == nil {
		t.Fatal("expected Open to abort on the corrupt file")
	}
	if !IsParseError(err) {
		t.Errorf("Open error = %v, want a ParseError", err)
	}
}

func TestGetTableCachesHandle(t *testing.T) {
	d := testDriver(t)
	h := testHeader(t, Column{Name: "a", Type: Text})
	if _, err := d.CreateTable("t", h); err != nil {
		t.Fatal(err)
	}
	t1, err := d.GetTable("t")
	if err != nil {
		t.Fatal(err)
	}
	t2, err := d.GetTable("t")
	if err != nil {
		t.Fatal(err)
	}
	if t1 != t2 {
		t.Error("GetTable returned distinct handle instances for one name")
	}
}

func TestGetTableUnknown(t *testing.T) {
	d := testDriver(t)
	if _, err := d.GetTable("missing"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("GetTable = %v, want ErrTableNotFound", err)
	}
}

func TestCreateTableExists(t *testing.T) {
	d := testDriver(t)
	h := testHeader(t, Column{Name: "a", Type: Text})
	if _, err := d.CreateTable("t", h); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateTable("t", h); !errors.Is(err, ErrTableExists) {
		t.Errorf("second CreateTable = %v, want ErrTableExists", err)
	}
}

func TestCreateTableInvalidName(t *testing.T) {
	d := testDriver(t)
	h := testHeader(t, Column{Name: "a", Type: Text})
	for _, name := range []string{"", "a/b", `a\b`} {
		if _, err := d.CreateTable(name, h); err == nil {
			t.Errorf("CreateTable(%q) accepted", name)
		}
	}
}

// The end-to-end scenario: create, insert, commit, reopen with a fresh
// driver, and read the row back unchanged.
func TestCommitAndReopen(t *testing.T) {
	dir := tmpDir(t)
	d, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader(t,
		Column{Name: "colt", Type: Text},
		Column{Name: "coln", Type: Numeric},
		Column{Name: "coli", Type: Integer},
		Column{Name: "colr", Type: Real},
	)
	tbl, err := d.CreateTable("duck", h)
	if err != nil {
		t.Fatal(err)
	}
	row := tbl.NewRow()
	if err := row.SetText("colt", "foo, bar,\nbaz"); err != nil {
		t.Fatal(err)
	}
	if err := row.SetFloat64("coln", 3.14); err != nil {
		t.Fatal(err)
	}
	if err := row.SetInt64("coli", 9223372036854775807); err != nil {
		t.Fatal(err)
	}
	if err := row.SetFloat64("colr", 42.0); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Insert(row); err != nil {
		t.Fatal(err)
	}
	if err := d.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	d2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d2.Close()
	tbl2, err := d2.GetTable("duck")
	if err != nil {
		t.Fatal(err)
	}
	rows := tbl2.SelectAll()
	if len(rows) != 1 {
		t.Fatalf("reloaded %d rows, want 1", len(rows))
	}
	if !rows[0].Equal(row) {
		t.Errorf("reloaded row differs:\n got %v\nwant %v", rows[0], row)
	}
}

func TestCommitOverwrites(t *testing.T) {
	dir := tmpDir(t)
	d, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader(t, Column{Name: "id", Type: Integer})
	tbl, err := d.CreateTable("t", h)
	if err != nil {
		t.Fatal(err)
	}
	row := tbl.NewRow()
	if err := row.SetInt64("id", 1); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Insert(row); err != nil {
		t.Fatal(err)
	}
	if err := d.Commit(); err != nil {
		t.Fatal(err)
	}
	tbl.Delete(func(*Row) bool { return true })
	if err := d.Commit(); err != nil {
		t.Fatal(err)
	}
	d.Close()

	d2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer d2.Close()
	tbl2, err := d2.GetTable("t")
	if err != nil {
		t.Fatal(err)
	}
	if tbl2.Len() != 0 {
		t.Errorf("second commit did not overwrite: %d rows", tbl2.Len())
	}
}

func TestCloseDiscardsWithoutCommit(t *testing.T) {
	dir := tmpDir(t)
	d, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader(t, Column{Name: "id", Type: Integer})
	if _, err := d.CreateTable("t", h); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "t.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Error("Close wrote a table file; it must not commit")
	}
	if _, err := d.GetTable("t"); !errors.Is(err, ErrDriverClosed) {
		t.Errorf("GetTable after Close = %v, want ErrDriverClosed", err)
	}
	if err := d.Commit(); !errors.Is(err, ErrDriverClosed) {
		t.Errorf("Commit after Close = %v, want ErrDriverClosed", err)
	}
}

func TestCompressedTables(t *testing.T) {
	dir := tmpDir(t)
	d, err := Open(dir, WithCompression(), WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader(t, Column{Name: "txt", Type: Text})
	tbl, err := d.CreateTable("zipped", h)
	if err != nil {
		t.Fatal(err)
	}
	row := tbl.NewRow()
	if err := row.SetText("txt", "compressed, escaped\ncontent"); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Insert(row); err != nil {
		t.Fatal(err)
	}
	if err := d.Commit(); err != nil {
		t.Fatal(err)
	}
	d.Close()

	if _, err := os.Stat(filepath.Join(dir, "zipped.csv.gz")); err != nil {
		t.Fatalf("compressed table file missing: %v", err)
	}

	// A table loaded from .csv.gz stays compressed on the next commit,
	// even without WithCompression.
	d2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	tbl2, err := d2.GetTable("zipped")
	if err != nil {
		t.Fatal(err)
	}
	if !tbl2.SelectAll()[0].Equal(row) {
		t.Error("compressed round trip lost the row")
	}
	if err := d2.Commit(); err != nil {
		t.Fatal(err)
	}
	d2.Close()
	if _, err := os.Stat(filepath.Join(dir, "zipped.csv.gz")); err != nil {
		t.Errorf("compression did not stick across reopen: %v", err)
	}
}

func TestOpenCorruptGzipChecksum(t *testing.T) {
	dir := tmpDir(t)
	d, err := Open(dir, WithCompression())
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader(t, Column{Name: "n", Type: Integer})
	tbl, err := d.CreateTable("t", h)
	if err != nil {
		t.Fatal(err)
	}
	for i := int64(1); i <= 3; i++ {
		row := tbl.NewRow()
		if err := row.SetInt64("n", i); err != nil {
			t.Fatal(err)
		}
		if err := tbl.Insert(row); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Commit(); err != nil {
		t.Fatal(err)
	}
	d.Close()

	// The last eight bytes of a gzip member are the CRC32 and size
	// trailer; flipping a CRC bit leaves the deflate stream intact, so
	// only the final checksum verification can catch it.
	path := filepath.Join(dir, "t.csv.gz")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-8] ^= 0xff
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(dir); err == nil {
		t.Fatal("table with a corrupt gzip checksum loaded silently")
	}
}

func TestDuplicateTableAcrossExtensions(t *testing.T) {
	dir := tmpDir(t)
	d, err := Open(dir, WithCompression())
	if err != nil {
		t.Fatal(err)
	}
	h := testHeader(t, Column{Name: "a", Type: Text})
	if _, err := d.CreateTable("t", h); err != nil {
		t.Fatal(err)
	}
	if err := d.Commit(); err != nil {
		t.Fatal(err)
	}
	d.Close()
	if err := os.WriteFile(filepath.Join(dir, "t.csv"), []byte("a\nTEXT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); err == nil || !strings.Contains(err.Error(), "both") {
		t.Errorf("Open with t.csv and t.csv.gz = %v, want duplicate table error", err)
	}
}

func TestDriverIdentity(t *testing.T) {
	d1 := testDriver(t)
	d2 := testDriver(t)
	if d1.ID() == d2.ID() {
		t.Error("two drivers share an ID")
	}
}
