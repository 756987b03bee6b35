package query

import (
	"regexp"
	"strings"

	"github.com/cohort-cli/cohort/internal/schema"
)

// identifierPattern is the shape every table and column name must have
// before it is allowed into SQL text. Membership in the schema snapshot
// is the real gate; the pattern is a second line of defense so that a
// stale or hand-edited index can never smuggle punctuation into a query.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// sqlKeywords are reserved words that must not appear bare as table
// aliases. Sanitized aliases that collide get a "safe_" prefix.
var sqlKeywords = map[string]struct{}{
	"SELECT": {}, "FROM": {}, "WHERE": {}, "JOIN": {}, "ON": {}, "AS": {},
	"AND": {}, "OR": {}, "NOT": {}, "IN": {}, "BETWEEN": {}, "LIKE": {},
	"ORDER": {}, "GROUP": {}, "BY": {}, "HAVING": {}, "UNION": {},
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "CREATE": {},
	"ALTER": {}, "TABLE": {}, "INDEX": {}, "VIEW": {}, "DISTINCT": {},
	"COUNT": {}, "SUM": {}, "AVG": {}, "MIN": {}, "MAX": {},
}

const maxIdentifierLen = 64

// demoAlias is the fixed alias of the demographics table in every
// compiled query. Behavioral tables are aliased by their sanitized
// names.
const demoAlias = "demo"

// ValidIdentifier reports whether name may be embedded in SQL text.
func ValidIdentifier(name string) bool {
	return name != "" && identifierPattern.MatchString(name)
}

// ValidateTable checks that table exists in the snapshot and has a
// safe name. The returned error is an *UnknownIdentifierError when the
// table is simply absent.
func ValidateTable(snap *schema.Snapshot, table string) error {
	if snap == nil || snap.IsEmpty() {
		return ErrEmptySchema
	}
	if !snap.HasTable(table) {
		return &UnknownIdentifierError{
			Kind:       "table",
			Name:       table,
			Suggestion: nearestName(table, snap.TableNames()),
		}
	}
	if !ValidIdentifier(table) {
		return &UnsafeIdentifierError{Kind: "table", Name: table}
	}
	return nil
}

// ValidateColumn checks that column exists on table and has a safe
// name. The table itself is validated first.
func ValidateColumn(snap *schema.Snapshot, table, column string) error {
	if err := ValidateTable(snap, table); err != nil {
		return err
	}
	if !snap.HasColumn(table, column) {
		return &UnknownIdentifierError{
			Kind:       "column",
			Table:      table,
			Name:       column,
			Suggestion: nearestName(column, snap.ColumnsOf(table)),
		}
	}
	if !ValidIdentifier(column) {
		return &UnsafeIdentifierError{Kind: "column", Table: table, Name: column}
	}
	return nil
}

// SanitizeIdentifier rewrites raw into a form safe to embed as a SQL
// alias: every character outside [A-Za-z0-9_] becomes an underscore, a
// leading digit gets a "col_" prefix, reserved words get a "safe_"
// prefix, and the result is capped at 64 characters.
func SanitizeIdentifier(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out[0] >= '0' && out[0] <= '9' {
		out = "col_" + out
	}
	if _, reserved := sqlKeywords[strings.ToUpper(out)]; reserved {
		out = "safe_" + out
	}
	if len(out) > maxIdentifierLen {
		out = out[:maxIdentifierLen]
	}
	return out
}

// TableAlias returns the alias a table is joined under. The
// demographics table is always "demo"; every other table is aliased by
// its sanitized name so that the alias is stable across queries.
func TableAlias(table, demographicsTable string) string {
	if table == demographicsTable {
		return demoAlias
	}
	return SanitizeIdentifier(table)
}

// nearestName picks a "did you mean" candidate: an exact
// case-insensitive match first, then a unique prefix match. Returns ""
// when nothing is close enough to be worth suggesting.
func nearestName(name string, candidates []string) string {
	lower := strings.ToLower(name)
	for _, c := range candidates {
		if strings.ToLower(c) == lower {
			return c
		}
	}
	var prefixed string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), lower) {
			if prefixed != "" {
				return ""
			}
			prefixed = c
		}
	}
	return prefixed
}
