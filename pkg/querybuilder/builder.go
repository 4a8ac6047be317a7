// Package querybuilder constructs parameterized statements against a table
// allowlist. Values never enter statement text: every build returns a
// template with named placeholders plus a parameter map, and every literal
// passes input validation first. Any contract violation is a SecurityError;
// callers must treat it as terminal for that query.
package querybuilder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	metrics "github.com/SafeNest/QueryShield/pkg/infra/prometheus"
	"github.com/SafeNest/QueryShield/pkg/types"
	"github.com/SafeNest/QueryShield/pkg/validator"
)

// MaxIdentifierLength matches the common database identifier limit.
const MaxIdentifierLength = 64

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Identifiers that are never valid table or column names regardless of
// grammar. Lowercase; lookups fold case.
var reservedWords = map[string]struct{}{
	"select": {}, "insert": {}, "update": {}, "delete": {}, "drop": {},
	"create": {}, "alter": {}, "truncate": {}, "union": {}, "join": {},
	"where": {}, "from": {}, "into": {}, "exec": {}, "execute": {},
	"grant": {}, "revoke": {}, "table": {}, "database": {}, "schema": {},
	"index": {}, "view": {}, "or": {}, "and": {}, "not": {}, "null": {},
	"like": {}, "having": {}, "order": {}, "group": {}, "by": {},
}

// TablePolicy is one allowlist entry. Child-data tables never accept the
// plain delete path; DeleteAudited is the only way to remove their rows and
// it requires the identifying key in the predicate.
type TablePolicy struct {
	ChildData      bool
	IdentifyingKey string
}

// Policy maps allowed table names to their access rules. Tables absent from
// the map are not queryable at all.
type Policy map[string]TablePolicy

// Query is a built statement: a template with :name placeholders and the
// parameter map to bind. The authorized flag is settable only inside this
// package, so an executor can refuse hand-assembled queries.
type Query struct {
	Template  string
	Params    map[string]interface{}
	Operation types.QueryOperation
	Table     string

	authorized bool
}

// Authorized reports whether this query came out of a Builder.
func (q *Query) Authorized() bool { return q.authorized }

type Builder struct {
	logger    logrus.FieldLogger
	validator *validator.Validator
	policy    Policy
}

func NewBuilder(logger logrus.FieldLogger, v *validator.Validator, policy Policy) *Builder {
	return &Builder{logger: logger, validator: v, policy: policy}
}

// ValidateTableAccess checks the allowlist and the per-table operation
// rules without building anything.
func (b *Builder) ValidateTableAccess(table string, op types.QueryOperation) error {
	policy, ok := b.policy[table]
	if !ok {
		return b.fail(types.CodeTableNotAllowed, fmt.Sprintf("table %q is not allowlisted", table))
	}
	if policy.ChildData && op == types.OpDelete {
		return b.fail(types.CodeOperationForbidden,
			fmt.Sprintf("table %q holds child data; deletion requires the audited path", table))
	}
	return nil
}

func (b *Builder) BuildSelect(table string, columns []string, where map[string]interface{}) (*Query, error) {
	if err := b.checkAccess(table, types.OpSelect); err != nil {
		return nil, err
	}

	columnList := "*"
	if len(columns) > 0 {
		for _, c := range columns {
			if err := b.checkIdentifier(c); err != nil {
				return nil, err
			}
		}
		columnList = strings.Join(columns, ", ")
	}

	clause, params, err := b.predicate(table, where, nil)
	if err != nil {
		return nil, err
	}

	template := fmt.Sprintf("SELECT %s FROM %s", columnList, table)
	if clause != "" {
		template += " WHERE " + clause
	}
	return b.finish(types.OpSelect, table, template, params)
}

func (b *Builder) BuildInsert(table string, values map[string]interface{}) (*Query, error) {
	if err := b.checkAccess(table, types.OpInsert); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, b.fail(types.CodeEmptyQuery, "insert requires at least one column value")
	}

	keys, params, err := b.bind(table, values, nil)
	if err != nil {
		return nil, err
	}

	placeholders := make([]string, len(keys))
	for i, k := range keys {
		placeholders[i] = ":" + k
	}
	template := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(keys, ", "), strings.Join(placeholders, ", "))
	return b.finish(types.OpInsert, table, template, params)
}

func (b *Builder) BuildUpdate(table string, set, where map[string]interface{}) (*Query, error) {
	if err := b.checkAccess(table, types.OpUpdate); err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, b.fail(types.CodeEmptyQuery, "update requires at least one assignment")
	}
	if len(where) == 0 {
		return nil, b.fail(types.CodeMissingPredicate, "update requires a predicate; unscoped updates are forbidden")
	}

	setKeys, params, err := b.bind(table, set, nil)
	if err != nil {
		return nil, err
	}
	assignments := make([]string, len(setKeys))
	for i, k := range setKeys {
		assignments[i] = fmt.Sprintf("%s = :%s", k, k)
	}

	clause, params, err := b.predicate(table, where, params)
	if err != nil {
		return nil, err
	}

	template := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(assignments, ", "), clause)
	return b.finish(types.OpUpdate, table, template, params)
}

// BuildDelete serves non-child tables only; the allowlist check routes
// child-data tables to DeleteAudited.
func (b *Builder) BuildDelete(table string, where map[string]interface{}) (*Query, error) {
	if err := b.checkAccess(table, types.OpDelete); err != nil {
		return nil, err
	}
	if len(where) == 0 {
		return nil, b.fail(types.CodeMissingPredicate, "delete requires a predicate; unscoped deletes are forbidden")
	}

	clause, params, err := b.predicate(table, where, nil)
	if err != nil {
		return nil, err
	}
	template := fmt.Sprintf("DELETE FROM %s WHERE %s", table, clause)
	return b.finish(types.OpDelete, table, template, params)
}

// DeleteAudited is the only deletion path for child-data tables. The
// predicate must include the table's identifying key, and the build is
// logged at warning level with the caller-supplied reason.
func (b *Builder) DeleteAudited(table string, where map[string]interface{}, reason string) (*Query, error) {
	policy, ok := b.policy[table]
	if !ok {
		return nil, b.fail(types.CodeTableNotAllowed, fmt.Sprintf("table %q is not allowlisted", table))
	}
	if !policy.ChildData {
		return b.BuildDelete(table, where)
	}
	if policy.IdentifyingKey == "" {
		return nil, b.fail(types.CodeOperationForbidden,
			fmt.Sprintf("table %q has no identifying key configured; rows cannot be deleted", table))
	}
	if _, ok := where[policy.IdentifyingKey]; !ok {
		return nil, b.fail(types.CodeMissingPredicate,
			fmt.Sprintf("audited delete on %q requires predicate key %q", table, policy.IdentifyingKey))
	}

	clause, params, err := b.predicate(table, where, nil)
	if err != nil {
		return nil, err
	}
	template := fmt.Sprintf("DELETE FROM %s WHERE %s", table, clause)

	b.logger.WithFields(logrus.Fields{
		"operation":  string(types.OpDelete),
		"table":      table,
		"param_keys": paramKeys(params),
		"reason":     reason,
		"audited":    true,
	}).Warn("audited child-data deletion built")

	return b.finish(types.OpDelete, table, template, params)
}

// predicate renders a sorted AND-joined equality clause, validating keys
// and values. params may carry bindings from an earlier clause; colliding
// names get a _pred suffix.
func (b *Builder) predicate(table string, where, params map[string]interface{}) (string, map[string]interface{}, error) {
	if len(where) == 0 {
		return "", params, nil
	}
	if params == nil {
		params = make(map[string]interface{}, len(where))
	}

	keys := sortedKeys(where)
	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := b.checkIdentifier(k); err != nil {
			return "", nil, err
		}
		if err := b.checkValue(table, k, where[k]); err != nil {
			return "", nil, err
		}
		name := k
		if _, taken := params[name]; taken {
			name = k + "_pred"
		}
		params[name] = where[k]
		terms = append(terms, fmt.Sprintf("%s = :%s", k, name))
	}
	return strings.Join(terms, " AND "), params, nil
}

// bind validates and collects a column->value map, returning the sorted
// key order used in the template.
func (b *Builder) bind(table string, values, params map[string]interface{}) ([]string, map[string]interface{}, error) {
	if params == nil {
		params = make(map[string]interface{}, len(values))
	}
	keys := sortedKeys(values)
	for _, k := range keys {
		if err := b.checkIdentifier(k); err != nil {
			return nil, nil, err
		}
		if err := b.checkValue(table, k, values[k]); err != nil {
			return nil, nil, err
		}
		params[k] = values[k]
	}
	return keys, params, nil
}

func (b *Builder) finish(op types.QueryOperation, table, template string, params map[string]interface{}) (*Query, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	q := &Query{
		Template:   template,
		Params:     params,
		Operation:  op,
		Table:      table,
		authorized: true,
	}

	b.logger.WithFields(logrus.Fields{
		"operation":  string(op),
		"table":      table,
		"param_keys": paramKeys(params),
	}).Info("query built")

	if metrics.Config.EnablePerTable {
		metrics.QueryBuildsTotal.WithLabelValues(string(op), table).Inc()
	} else {
		metrics.QueryBuildsTotal.WithLabelValues(string(op), "").Inc()
	}
	return q, nil
}

func (b *Builder) checkAccess(table string, op types.QueryOperation) error {
	if err := b.checkIdentifier(table); err != nil {
		return err
	}
	return b.ValidateTableAccess(table, op)
}

func (b *Builder) checkIdentifier(name string) error {
	if len(name) == 0 || len(name) > MaxIdentifierLength || !identifierRe.MatchString(name) {
		return b.fail(types.CodeInvalidIdentifier, fmt.Sprintf("identifier %q is not valid", name))
	}
	if _, reserved := reservedWords[strings.ToLower(name)]; reserved {
		return b.fail(types.CodeReservedWord, fmt.Sprintf("identifier %q is a reserved word", name))
	}
	return nil
}

// checkValue runs string literals through input validation. Non-string
// values bind as typed parameters and cannot alter statement structure.
func (b *Builder) checkValue(table, column string, value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	verdict := b.validator.Validate(s, "querybuilder:"+table+"."+column)
	if !verdict.Allowed {
		return b.fail(types.CodeValueRejected,
			fmt.Sprintf("value for %s.%s rejected (%s)", table, column, verdict.AttackType))
	}
	return nil
}

func (b *Builder) fail(code, reason string) error {
	metrics.QueryBuildFailuresTotal.WithLabelValues(code).Inc()
	b.logger.WithFields(logrus.Fields{
		"code":   code,
		"reason": reason,
	}).Warn("query build rejected")
	return &types.SecurityError{Code: code, Reason: reason}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func paramKeys(params map[string]interface{}) []string {
	return sortedKeys(params)
}
