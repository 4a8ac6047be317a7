package patterns

// Pattern families. Written as named alternations per pattern id so a
// verdict can report which rule fired without exposing the rule text.
// All patterns are case-insensitive and multiline.

func (r *Registry) registerCriticalPatterns() {
	r.register("sql_union_select", CategoryCritical,
		`(?im)UNION\s+(?:ALL\s+)?SELECT\b`)

	r.register("sql_stacked_statement", CategoryCritical,
		`(?im)['";]\s*;?\s*(?:INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE)\s+(?:INTO|FROM|TABLE|DATABASE|SCHEMA|VIEW|INDEX)\b`)

	r.register("sql_ddl_statement", CategoryCritical,
		`(?im)\b(?:DROP|TRUNCATE)\s+(?:TABLE|DATABASE|SCHEMA|VIEW|INDEX)\b|`+
			`(?im)\bALTER\s+TABLE\s+\w+\s+(?:ADD|DROP|MODIFY|CHANGE|RENAME)\b`)

	r.register("sql_delete_from", CategoryCritical,
		`(?im)\bDELETE\s+FROM\s+\w+`)

	r.register("sql_exec_primitive", CategoryCritical,
		`(?im)\b(?:EXEC(?:UTE)?\s+(?:IMMEDIATE|sp_|xp_)|xp_cmdshell|sp_executesql)\b|`+
			`(?im)\b(?:eval|system|exec|shell_exec|passthru|popen)\s*\(`)

	r.register("sql_file_primitive", CategoryCritical,
		`(?im)\b(?:LOAD_FILE|LOAD\s+DATA|pg_read_file|pg_ls_dir)\s*\(|`+
			`(?im)\bINTO\s+(?:OUT|DUMP)FILE\b`)

	r.register("sql_schema_probe", CategoryCritical,
		`(?im)\binformation_schema\s*\.|\bpg_catalog\s*\.|\bsysobjects\b|\bsyscolumns\b`)

	r.register("sql_grant_revoke", CategoryCritical,
		`(?im)\b(?:GRANT|REVOKE)\s+(?:ALL|SELECT|INSERT|UPDATE|DELETE|EXECUTE)\b`)
}

func (r *Registry) registerHighRiskPatterns() {
	r.register("sql_comment_marker", CategoryHighRisk,
		`(?m)(?:--[^\r\n]*$|/\*[\s\S]*?\*/|/\*!|(?:['";]|\s)#[^\r\n]*$)`)

	r.register("sql_tautology", CategoryHighRisk,
		`(?im)['"]?\s*\bOR\b\s*['"]?\s*\d+\s*=\s*\d+|`+
			`(?im)\bOR\b\s*['"][^'"]*['"]\s*=\s*['"][^'"]*['"]|`+
			`(?im)\bOR\b\s+(?:true|1)\s*(?:--|#|$)`)

	r.register("sql_time_blind", CategoryHighRisk,
		`(?im)\b(?:SLEEP|BENCHMARK|pg_sleep)\s*\(\s*\d|`+
			`(?im)\bWAITFOR\s+DELAY\s+['"]`)

	r.register("sql_stored_procedure", CategoryHighRisk,
		`(?im)\b(?:CALL|EXEC(?:UTE)?)\s+\w+\s*\(|(?im)\bsp_\w+\b`)

	r.register("sql_quote_escape_probe", CategoryHighRisk,
		`(?im)'\s*(?:OR|AND)\s+[^=]{1,40}\s+LIKE\s+'|(?m)\\x27|(?m)%27\s*(?:or|and)\b`)
}

func (r *Registry) registerNoSQLCommandPatterns() {
	r.register("nosql_operator_object", CategoryNoSQLCommand,
		`(?im)["']?\$(?:where|regex|ne|gt|gte|lt|lte|nin|in|exists|elemMatch|expr|function|accumulator)["']?\s*[:=]`)

	r.register("nosql_js_function", CategoryNoSQLCommand,
		`(?im)\bfunction\s*\(\s*\)\s*\{|\{\s*["']\$function["']\s*:`)

	r.register("ldap_filter_injection", CategoryNoSQLCommand,
		`(?im)\(\s*[|&!]\s*\([^)]+\)|\)\s*\(\s*[|&]\s*\(|`+
			`(?im)\b(?:objectClass|cn|uid|mail|sn|givenName|userPassword)\s*=\s*\*`)

	r.register("shell_metachar_chain", CategoryNoSQLCommand,
		`(?im)[;&|]\s*(?:ls|cat|rm|wget|curl|nc|netcat|bash|sh|powershell|cmd(?:\.exe)?)\b|`+
			`(?im)\|\s*(?:sh|bash|powershell)\b`)

	r.register("shell_substitution", CategoryNoSQLCommand,
		"(?im)\\$\\([^)]{1,120}\\)|`[^`]{1,120}`")
}

// Child-targeting patterns flag child-identifying vocabulary co-occurring
// with query verbs in either order. The co-occurrence window is bounded to
// keep matching linear.
func (r *Registry) registerChildTargetingPatterns() {
	const childVocab = `(?:age|birth(?:day|date)?|school|grade|classroom|parent|guardian|` +
		`medical|health|allergy|allergies|medication|diagnosis|address|phone|email|ssn|child(?:ren)?_?\w*)`
	const queryVerb = `(?:select|union|insert|update|delete|drop|where|from|like)`

	r.register("child_vocab_query_verb", CategoryChildTargeting,
		`(?im)\b`+childVocab+`\b[\s\S]{0,120}?\b`+queryVerb+`\b`)

	r.register("query_verb_child_vocab", CategoryChildTargeting,
		`(?im)\b`+queryVerb+`\b[\s\S]{0,120}?\b`+childVocab+`\b`)
}
