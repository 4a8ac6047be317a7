package executor

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeNest/QueryShield/pkg/audit"
	"github.com/SafeNest/QueryShield/pkg/encoding"
	"github.com/SafeNest/QueryShield/pkg/learning"
	"github.com/SafeNest/QueryShield/pkg/patterns"
	"github.com/SafeNest/QueryShield/pkg/querybuilder"
	"github.com/SafeNest/QueryShield/pkg/scoring"
	"github.com/SafeNest/QueryShield/pkg/validator"
)

func newTestBuilder(t *testing.T) *querybuilder.Builder {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	v := validator.New(
		logger,
		patterns.NewRegistry(0),
		encoding.NewDetector(),
		scoring.NewScorer(scoring.DefaultProfile()),
		learning.NewLearner(logger, 5, 0),
		audit.NewLog(0),
		audit.NewHasher([]byte("test-salt")),
		validator.Options{},
	)
	return querybuilder.NewBuilder(logger, v, querybuilder.Policy{
		"orders": {ChildData: false},
	})
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		template string
		params   map[string]interface{}
		wantStmt string
		wantArgs []interface{}
	}{
		{
			name:     "single placeholder",
			template: "SELECT * FROM orders WHERE id = :id",
			params:   map[string]interface{}{"id": 7},
			wantStmt: "SELECT * FROM orders WHERE id = $1",
			wantArgs: []interface{}{7},
		},
		{
			name:     "placeholders numbered in appearance order",
			template: "UPDATE orders SET status = :status WHERE id = :id",
			params:   map[string]interface{}{"status": "closed", "id": 7},
			wantStmt: "UPDATE orders SET status = $1 WHERE id = $2",
			wantArgs: []interface{}{"closed", 7},
		},
		{
			name:     "no placeholders",
			template: "SELECT * FROM orders",
			params:   map[string]interface{}{},
			wantStmt: "SELECT * FROM orders",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, args, err := Rewrite(tt.template, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStmt, stmt)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestRewrite_UnknownPlaceholder(t *testing.T) {
	_, _, err := Rewrite("SELECT * FROM orders WHERE id = :id", map[string]interface{}{})
	assert.Error(t, err)
}

func TestRewrite_UnusedParameter(t *testing.T) {
	_, _, err := Rewrite("SELECT * FROM orders", map[string]interface{}{"id": 7})
	assert.Error(t, err)
}

func TestExecutor_ExecRunsBuiltQuery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	b := newTestBuilder(t)
	q, err := b.BuildInsert("orders", map[string]interface{}{
		"customer": "jane",
		"qty":      3,
	})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO orders (customer, qty) VALUES ($1, $2)").
		WithArgs("jane", 3).
		WillReturnResult(sqlmock.NewResult(1, 1))

	e := New(db, quietLogger())
	_, err = e.Exec(context.Background(), q)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_QueryRunsBuiltSelect(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	b := newTestBuilder(t)
	q, err := b.BuildSelect("orders", []string{"id"}, map[string]interface{}{"status": "open"})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id FROM orders WHERE status = $1").
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	e := New(db, quietLogger())
	rows, err := e.Query(context.Background(), q)
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	var id int
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, 1, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_RefusesHandAssembledQuery(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := New(db, quietLogger())
	smuggled := &querybuilder.Query{
		Template: "DELETE FROM orders",
		Params:   map[string]interface{}{},
	}
	_, err = e.Exec(context.Background(), smuggled)
	assert.ErrorIs(t, err, ErrUnauthorizedQuery)

	_, err = e.Exec(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthorizedQuery)
}
