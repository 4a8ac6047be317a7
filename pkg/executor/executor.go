// Package executor runs built queries against Postgres. It accepts only
// queries produced by the secure builder; a Query assembled by hand fails
// the authorization check before touching the database.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/SafeNest/QueryShield/pkg/querybuilder"
)

// ErrUnauthorizedQuery is returned for queries that did not come out of a
// Builder. There is no override.
var ErrUnauthorizedQuery = errors.New("query was not produced by the secure builder")

var placeholderRe = regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`)

// Open dials Postgres through lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type Executor struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

func New(db *sql.DB, logger logrus.FieldLogger) *Executor {
	return &Executor{db: db, logger: logger}
}

// Exec runs a mutation query (insert, update, delete).
func (e *Executor) Exec(ctx context.Context, q *querybuilder.Query) (sql.Result, error) {
	stmt, args, err := e.prepare(q)
	if err != nil {
		return nil, err
	}
	return e.db.ExecContext(ctx, stmt, args...)
}

// Query runs a select and returns the row set.
func (e *Executor) Query(ctx context.Context, q *querybuilder.Query) (*sql.Rows, error) {
	stmt, args, err := e.prepare(q)
	if err != nil {
		return nil, err
	}
	return e.db.QueryContext(ctx, stmt, args...)
}

func (e *Executor) prepare(q *querybuilder.Query) (string, []interface{}, error) {
	if q == nil || !q.Authorized() {
		return "", nil, ErrUnauthorizedQuery
	}
	stmt, args, err := Rewrite(q.Template, q.Params)
	if err != nil {
		return "", nil, err
	}
	e.logger.WithFields(logrus.Fields{
		"operation": string(q.Operation),
		"table":     q.Table,
		"args":      len(args),
	}).Debug("executing built query")
	return stmt, args, nil
}

// Rewrite converts :name placeholders to positional $n markers and returns
// the bind arguments in placeholder order. Every placeholder must have a
// parameter and every parameter must be used.
func Rewrite(template string, params map[string]interface{}) (string, []interface{}, error) {
	var (
		args []interface{}
		used = make(map[string]struct{}, len(params))
		err  error
	)
	stmt := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1:]
		value, ok := params[name]
		if !ok {
			if err == nil {
				err = fmt.Errorf("template references unknown parameter %q", name)
			}
			return m
		}
		used[name] = struct{}{}
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	})
	if err != nil {
		return "", nil, err
	}
	if len(used) != len(params) {
		for name := range params {
			if _, ok := used[name]; !ok {
				return "", nil, fmt.Errorf("parameter %q is not referenced by the template", name)
			}
		}
	}
	return stmt, args, nil
}
