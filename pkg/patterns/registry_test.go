package patterns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CriticalPatterns(t *testing.T) {
	registry := NewRegistry(0)

	tests := []struct {
		name      string
		input     string
		patternID string
	}{
		{
			name:      "union select",
			input:     "1 UNION SELECT username, password FROM users",
			patternID: "sql_union_select",
		},
		{
			name:      "union all select",
			input:     "x' UNION ALL SELECT NULL,NULL--",
			patternID: "sql_union_select",
		},
		{
			name:      "stacked drop after quote",
			input:     "'; DROP TABLE users; --",
			patternID: "sql_stacked_statement",
		},
		{
			name:      "drop table",
			input:     "DROP TABLE students",
			patternID: "sql_ddl_statement",
		},
		{
			name:      "delete from",
			input:     "DELETE FROM sessions",
			patternID: "sql_delete_from",
		},
		{
			name:      "xp_cmdshell",
			input:     "EXEC xp_cmdshell 'dir'",
			patternID: "sql_exec_primitive",
		},
		{
			name:      "load_file",
			input:     "SELECT LOAD_FILE('/etc/passwd')",
			patternID: "sql_file_primitive",
		},
		{
			name:      "information_schema probe",
			input:     "SELECT table_name FROM information_schema.tables",
			patternID: "sql_schema_probe",
		},
		{
			name:      "grant all",
			input:     "GRANT ALL PRIVILEGES ON db.*",
			patternID: "sql_grant_revoke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := registry.Match(tt.input, CategoryCritical)
			require.NotEmpty(t, matches, "expected a critical match")
			ids := make([]string, len(matches))
			for i, m := range matches {
				ids[i] = m.PatternID
			}
			assert.Contains(t, ids, tt.patternID)
		})
	}
}

func TestRegistry_HighRiskPatterns(t *testing.T) {
	registry := NewRegistry(0)

	tests := []struct {
		name  string
		input string
	}{
		{"line comment", "admin'--"},
		{"block comment", "1 /* bypass */ 2"},
		{"numeric tautology", "1' OR 1=1"},
		{"string tautology", "x OR 'a'='a'"},
		{"sleep call", "1; SELECT SLEEP(5)"},
		{"waitfor delay", "1 WAITFOR DELAY '0:0:5'"},
		{"stored procedure call", "CALL remove_user(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := registry.MatchAny(tt.input, CategoryHighRisk)
			assert.True(t, ok, "expected a high-risk match for %q", tt.input)
		})
	}
}

func TestRegistry_NoSQLCommandPatterns(t *testing.T) {
	registry := NewRegistry(0)

	tests := []struct {
		name      string
		input     string
		patternID string
	}{
		{"mongo where operator", `{"$where": "this.a == 1"}`, "nosql_operator_object"},
		{"mongo ne operator", `{"password": {"$ne": null}}`, "nosql_operator_object"},
		{"js function body", "function() { return true }", "nosql_js_function"},
		{"ldap wildcard filter", "(|(uid=*)(cn=admin))", "ldap_filter_injection"},
		{"shell pipe to bash", "payload | bash", "shell_metachar_chain"},
		{"command substitution", "$(cat /etc/passwd)", "shell_substitution"},
		{"backtick substitution", "`id`", "shell_substitution"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := registry.MatchAny(tt.input, CategoryNoSQLCommand)
			require.True(t, ok, "expected a match for %q", tt.input)
			assert.Equal(t, tt.patternID, m.PatternID)
		})
	}
}

func TestRegistry_ChildTargetingPatterns(t *testing.T) {
	registry := NewRegistry(0)

	matched := []string{
		"SELECT birthdate FROM profiles",
		"age > 5 union select parent_contact",
		"where allergy like '%nut%'",
		"school names from the district",
	}
	for _, input := range matched {
		_, ok := registry.MatchAny(input, CategoryChildTargeting)
		assert.True(t, ok, "expected child-targeting match for %q", input)
	}

	clean := []string{
		"Tell me a story about dragons",
		"the weather is nice today",
		"age appropriate content guidelines",
	}
	for _, input := range clean {
		_, ok := registry.MatchAny(input, CategoryChildTargeting)
		assert.False(t, ok, "unexpected child-targeting match for %q", input)
	}
}

func TestRegistry_CleanInputs(t *testing.T) {
	registry := NewRegistry(0)

	clean := []string{
		"Tell me a story about dragons",
		"jane.doe@example.com",
		"ordinary product description with numbers 12345",
		"O'Brien", // lone apostrophe is not an attack
	}
	for _, input := range clean {
		assert.Empty(t, registry.Match(input), "unexpected match for %q", input)
	}
}

func TestRegistry_BoundTruncatesLongInput(t *testing.T) {
	registry := NewRegistry(100)

	long := strings.Repeat("a", 200) + " UNION SELECT x"
	assert.Len(t, registry.Bound(long), 100)

	// The attack payload sits past the cap, so it is not evaluated.
	assert.Empty(t, registry.Match(long, CategoryCritical))

	// Within the cap it still matches.
	_, ok := registry.MatchAny("UNION SELECT x", CategoryCritical)
	assert.True(t, ok)
}

func TestRegistry_Counts(t *testing.T) {
	registry := NewRegistry(0)

	assert.Equal(t, 8, registry.CategoryCount(CategoryCritical))
	assert.Equal(t, 5, registry.CategoryCount(CategoryHighRisk))
	assert.Equal(t, 5, registry.CategoryCount(CategoryNoSQLCommand))
	assert.Equal(t, 2, registry.CategoryCount(CategoryChildTargeting))
	assert.Equal(t, 20, registry.TotalPatterns())
}
