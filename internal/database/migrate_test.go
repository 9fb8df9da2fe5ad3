package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStatementsCoverEveryTable(t *testing.T) {
	stmts := Statements()
	tables := []string{"users", "refresh_tokens", "genres", "actors", "plays", "play_genres",
		"play_actors", "theatre_halls", "performances", "reservations", "tickets"}
	if len(stmts) != len(tables) {
		t.Fatalf("expected %d statements, got %d", len(tables), len(stmts))
	}
	for i, table := range tables {
		if !strings.Contains(stmts[i], "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("statement %d does not create %s:\n%s", i+1, table, stmts[i])
		}
	}
}

func TestMigrateExecutesStatementsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	for _, stmt := range Statements() {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrateStopsOnFirstError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	boom := errors.New("access denied")
	mock.ExpectExec(regexp.QuoteMeta(Statements()[0])).WillReturnError(boom)

	err = Migrate(context.Background(), db)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped %v, got %v", boom, err)
	}
	if !strings.Contains(err.Error(), "schema statement 1") {
		t.Fatalf("error should name the failing statement: %v", err)
	}
}
