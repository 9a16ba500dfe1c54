// Copyright 2024 New Vector Ltd.
// Copyright 2017, 2018 New Vector Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package sqlutil holds the small pieces of database/sql glue every
// storage package in this module builds its prepared statements and
// transactions on top of: a shared connection manager, a declarative
// statement list, and a handful of helpers for running a statement
// inside or outside of a transaction interchangeably.
package sqlutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	// Both backends register themselves as database/sql drivers on
	// import; callers never construct a driver directly.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connections is a process-wide cache of *sql.DB handles keyed by
// connection string, so that two storage packages asking to open the
// same database share one pool instead of each opening their own.
type Connections struct {
	mu    sync.Mutex
	ctx   context.Context
	conns map[string]*sql.DB
}

// NewConnectionManager returns a Connections bound to ctx, which is used
// to ping each newly opened database. Connections never closes the
// databases it opens.
func NewConnectionManager(ctx context.Context) *Connections {
	return &Connections{
		ctx:   ctx,
		conns: make(map[string]*sql.DB),
	}
}

// Connection returns the shared *sql.DB for dataSourceName, opening and
// pinging it the first time it's requested.
func (c *Connections) Connection(driverName, dataSourceName string) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := driverName + "|" + dataSourceName
	if db, ok := c.conns[key]; ok {
		return db, nil
	}

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if driverName == "sqlite3" {
		// SQLite serialises writes to a database file; letting database/sql hand out more than one writable
		// connection at a time produces spurious "database is locked"
		// errors under concurrent access.
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(c.ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}

	c.conns[key] = db
	return db, nil
}

// Transaction is satisfied by *sql.Tx; code that needs to roll back a
// transaction started elsewhere takes this interface rather than the
// concrete type so it can be exercised by a stub in tests.
type Transaction interface {
	Commit() error
	Rollback() error
}

// WithTransaction runs fn inside a transaction on db, committing if fn
// returns nil and rolling back otherwise. A panic inside fn is converted
// to a rollback and re-thrown.
func WithTransaction(db *sql.DB, fn func(txn *sql.Tx) error) (err error) {
	txn, err := db.Begin()
	if err != nil {
		return fmt.Errorf("db.Begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = txn.Rollback()
			panic(p)
		} else if err != nil {
			_ = txn.Rollback()
		} else {
			err = txn.Commit()
		}
	}()
	return fn(txn)
}

// EndTransactionWithCheck commits txn if *succeeded is true when it runs
// (set it just before your final return), and rolls back otherwise. Any
// rollback/commit error is folded into *err only if *err was nil, so an
// earlier error from the transaction body always wins.
func EndTransactionWithCheck(txn Transaction, succeeded *bool, err *error) {
	if !*succeeded {
		if rbErr := txn.Rollback(); rbErr != nil && *err == nil {
			*err = rbErr
		}
		return
	}
	if commitErr := txn.Commit(); commitErr != nil && *err == nil {
		*err = commitErr
	}
}

// TxStmt returns stmt bound to txn if txn is non-nil, or stmt itself
// otherwise, so that callers can write one code path that works both
// inside and outside an explicit transaction.
func TxStmt(txn *sql.Tx, stmt *sql.Stmt) *sql.Stmt {
	if txn == nil {
		return stmt
	}
	return txn.Stmt(stmt)
}

// TxStmtContext is TxStmt with a context, for the rare case where binding
// the statement to the transaction itself needs to be cancellable.
func TxStmtContext(ctx context.Context, txn *sql.Tx, stmt *sql.Stmt) *sql.Stmt {
	if txn == nil {
		return stmt
	}
	return txn.StmtContext(ctx, stmt)
}

// QueryVariadic returns a parenthesised, comma-separated list of n
// placeholders ($1, $2, ..., $n), for substituting into a SQL string
// in place of a literal "($1)" written for the single-value case.
func QueryVariadic(n int) string {
	return QueryVariadicOffset(n, 1)
}

// QueryVariadicOffset is QueryVariadic starting the placeholder numbering
// at offset instead of 1, for queries that also bind fixed parameters
// before the variadic list.
func QueryVariadicOffset(n, offset int) string {
	if n <= 0 {
		return "(NULL)"
	}
	placeholders := make([]string, n)
	for i := 0; i < n; i++ {
		placeholders[i] = fmt.Sprintf("$%d", offset+i)
	}
	return "(" + strings.Join(placeholders, ", ") + ")"
}

// StatementListEntry pairs a *sql.Stmt destination with the query text to
// prepare into it.
type StatementListEntry struct {
	Statement **sql.Stmt
	SQL       string
}

// StatementList is the declarative list of statements a table
// implementation prepares against its *sql.DB. Prepare populates each
// entry's Statement pointer in order, stopping at the first failure so
// the caller's error names the offending query.
type StatementList []StatementListEntry

func (l StatementList) Prepare(db *sql.DB) error {
	for _, entry := range l {
		stmt, err := db.Prepare(entry.SQL)
		if err != nil {
			return fmt.Errorf("sqlutil: prepare %q: %w", entry.SQL, err)
		}
		*entry.Statement = stmt
	}
	return nil
}
