// Package store é a camada SQL compartilhada pelo ledger e pelas apostas.
// As queries são escritas uma vez com placeholders "?" e reescritas para o
// dialeto em uso (Postgres via lib/pq, SQLite via modernc).
package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/radieske/kmarket/internal/shared/apperr"
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// ParseDialect aceita o valor de DB_DRIVER
func ParseDialect(s string) (Dialect, bool) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return 0, false
}

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Runner é satisfeito por *DB e *Tx; repositórios escrevem contra ele
type Runner interface {
	Exec(ctx context.Context, q string, args ...any) (sql.Result, error)
	Query(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, q string, args ...any) *sql.Row
	Dialect() Dialect
}

type DB struct {
	sql     *sql.DB
	dialect Dialect
}

func New(db *sql.DB, d Dialect) *DB { return &DB{sql: db, dialect: d} }

func (d *DB) SQL() *sql.DB                   { return d.sql }
func (d *DB) Dialect() Dialect               { return d.dialect }
func (d *DB) Close() error                   { return d.sql.Close() }
func (d *DB) Ping(ctx context.Context) error { return d.sql.PingContext(ctx) }

func (d *DB) Exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, Rebind(d.dialect, q), args...)
}

func (d *DB) Query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, Rebind(d.dialect, q), args...)
}

func (d *DB) QueryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, Rebind(d.dialect, q), args...)
}

// Tx é uma transação em andamento. Nunca use o *DB de dentro de InTx: no
// SQLite há uma única conexão e a chamada ficaria presa.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) Dialect() Dialect { return t.dialect }

func (t *Tx) Exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, Rebind(t.dialect, q), args...)
}

func (t *Tx) Query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, Rebind(t.dialect, q), args...)
}

func (t *Tx) QueryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, Rebind(t.dialect, q), args...)
}

// InTx roda fn numa transação. Qualquer erro desfaz tudo; erros que não são de
// negócio voltam classificados como transitórios.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transient(err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx, dialect: d.dialect}); err != nil {
		return apperr.Transient(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// ForUpdate devolve o sufixo de lock de linha do dialeto. No SQLite as
// transações já são serializadas pela conexão única.
func ForUpdate(r Runner) string {
	if r.Dialect() == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// Rebind troca "?" por "$1..$n" no Postgres
func Rebind(d Dialect, q string) string {
	if d != Postgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
