// Package repository holds the MySQL data-access layer.  Sentinel errors
// defined here let services distinguish "no such row" and uniqueness
// violations from genuine storage failures.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned by UserRepo.Create when the username is taken.
var ErrUsernameExists = errors.New("username already exists")

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
