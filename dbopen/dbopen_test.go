package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMemory_Pragmas(t *testing.T) {
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys: got %d, want 1", fk)
	}

	var busy int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if busy != 10_000 {
		t.Errorf("busy_timeout: got %d, want 10000", busy)
	}
}

func TestOpen_WithSchema(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE widgets (id TEXT PRIMARY KEY)`))

	if _, err := db.Exec(`INSERT INTO widgets (id) VALUES ('w1')`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestOpen_WithoutForeignKeys(t *testing.T) {
	db := OpenMemory(t, WithoutForeignKeys())

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 0 {
		t.Errorf("foreign_keys: got %d, want 0", fk)
	}
}

func TestOpen_MkdirAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.db")
	db, err := Open(path, WithMkdirAll())
	if err != nil {
		t.Fatalf("Open with MkdirAll: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE t (x INTEGER)`); err != nil {
		t.Fatalf("exec on file db: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("SQLITE_BUSY: cannot start a transaction"), true},
		{errors.New("database table is locked"), true},
		{errors.New("no such table: widgets"), false},
	}
	for _, tt := range tests {
		if got := IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v): got %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRunTx_CommitsAndRollsBack(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE counters (n INTEGER)`))
	ctx := context.Background()

	err := RunTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO counters (n) VALUES (1)`)
		return err
	})
	if err != nil {
		t.Fatalf("RunTx commit: %v", err)
	}

	failure := errors.New("boom")
	err = RunTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO counters (n) VALUES (2)`); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("RunTx should surface fn error, got %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM counters`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("rolled-back insert should not persist: got %d rows", count)
	}
}
