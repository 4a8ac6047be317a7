package types

import "fmt"

// AttackType identifies the detection tier that flagged an input.
type AttackType string

const (
	AttackSQL            AttackType = "sql"
	AttackNoSQL          AttackType = "nosql"
	AttackCommand        AttackType = "command"
	AttackLDAP           AttackType = "ldap"
	AttackHighRisk       AttackType = "high_risk"
	AttackEncoded        AttackType = "encoded"
	AttackChildTargeting AttackType = "child_targeting"
	AttackLearnedPattern AttackType = "learned_pattern"
	AttackCachedRepeat   AttackType = "cached_repeat"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Verdict is the outcome of validating a single externally-sourced value.
// A rejected input is reported as data, never as an error: callers map
// Allowed=false to their own response semantics.
type Verdict struct {
	Allowed          bool       `json:"allowed"`
	Matched          []string   `json:"matched,omitempty"`
	AttackType       AttackType `json:"attack_type,omitempty"`
	ThreatScore      int        `json:"threat_score"`
	Severity         Severity   `json:"severity"`
	TargetsChildData bool       `json:"targets_child_data"`
	CacheHit         bool       `json:"cache_hit"`
}

type QueryOperation string

const (
	OpSelect QueryOperation = "select"
	OpInsert QueryOperation = "insert"
	OpUpdate QueryOperation = "update"
	OpDelete QueryOperation = "delete"
)

// SecurityError is returned by the query builder when a contract is
// violated: disallowed table or column, invalid identifier, missing
// required predicate, or a value rejected by validation. Callers must
// never execute a query after receiving one.
type SecurityError struct {
	Code   string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation [%s]: %s", e.Code, e.Reason)
}

// Codes carried by SecurityError. Rejection responses surface only the
// code; the offending payload stays out of user-visible output.
const (
	CodeTableNotAllowed    = "table_not_allowed"
	CodeOperationForbidden = "operation_forbidden"
	CodeInvalidIdentifier  = "invalid_identifier"
	CodeReservedWord       = "reserved_word"
	CodeMissingPredicate   = "missing_predicate"
	CodeValueRejected      = "value_rejected"
	CodeEmptyQuery         = "empty_query"
)
