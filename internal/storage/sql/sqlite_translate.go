package sql

import "regexp"

// translateSQLite rewrites a statement written against Postgres types
// into SQLite-compatible syntax, mirroring the teacher's flavorSQLite3
// query-replacer list.
func translateSQLite(query string) string {
	for _, r := range sqliteReplacers {
		query = r.re.ReplaceAllString(query, r.with)
	}
	return query
}

type replacer struct {
	re   *regexp.Regexp
	with string
}

func literal(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s) + `\b`)
}

var sqliteReplacers = []replacer{
	{literal("timestamptz"), "timestamp"},
	{literal("boolean"), "integer"},
	{literal("true"), "1"},
	{literal("false"), "0"},
}
