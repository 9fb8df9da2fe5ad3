// Package repository holds data access logic for the theatre domain: MySQL
// repositories built on database/sql and an in-memory store with the same
// behavior for development and tests.
//
// The sentinel values below allow higher layers to distinguish failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// ErrInvalidReference is returned when a write points at a row that does
// not exist (unknown genre, actor, play, hall or performance).
var ErrInvalidReference = errors.New("invalid reference")

// ErrSeatTaken is returned when a ticket would occupy a seat that is
// already sold for the performance.
var ErrSeatTaken = errors.New("seat already taken")

// ErrConflict is returned when a unique attribute (such as a genre name)
// is already used by another row.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering an email twice.
var ErrEmailExists = errors.New("email already exists")

// MySQL server error numbers mapped onto the sentinels above.
const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlErrNumber(err) == mysqlDuplicateEntry }

func isMissingReference(err error) bool { return mysqlErrNumber(err) == mysqlNoReferencedRow }

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// uint64Args converts ids into driver arguments.
func uint64Args(ids []uint64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// escapeLike escapes the LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
