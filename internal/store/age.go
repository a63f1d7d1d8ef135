package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"kgraph/internal/apierr"
	"kgraph/internal/logging"
)

// ExecuteQueryOnNamedGraph runs a Cypher query against an Apache AGE named
// graph and returns each result row as a dict keyed by the query's RETURN
// aliases. This is the sole path every graph operation issues Cypher through.
func (s *Store) ExecuteQueryOnNamedGraph(ctx context.Context, graphName, query string) ([]Row, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apierr.UpstreamHard("acquire connection", err)
	}
	defer conn.Release()

	if err := prepareAgeSession(ctx, conn.Conn()); err != nil {
		return nil, apierr.UpstreamHard("prepare age session", err)
	}

	columns := returnColumns(query)
	columnDefs := make([]string, len(columns))
	for i, c := range columns {
		columnDefs[i] = fmt.Sprintf("%s agtype", c)
	}

	wrapped := fmt.Sprintf(
		`SELECT * FROM ag_catalog.cypher(%s, $cypher$ %s $cypher$) AS (%s)`,
		quoteIdentLiteral(graphName), query, strings.Join(columnDefs, ", "),
	)

	rows, err := conn.Query(ctx, wrapped)
	if err != nil {
		return nil, apierr.UpstreamHard("execute cypher", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, apierr.UpstreamHard("read cypher row", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			var text string
			switch v := raw[i].(type) {
			case nil:
				row[col] = nil
				continue
			case string:
				text = v
			case []byte:
				text = string(v)
			default:
				text = fmt.Sprintf("%v", v)
			}
			decoded, err := decodeAgeValue(text)
			if err != nil {
				logging.Log.WithError(err).WithField("column", col).Warn("failed to parse agtype value, returning raw string")
				row[col] = text
				continue
			}
			row[col] = decoded
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// prepareAgeSession loads the AGE extension and puts ag_catalog on the
// session's search_path, the two things every named-graph call needs before
// cypher() resolves.
func prepareAgeSession(ctx context.Context, conn *pgx.Conn) error {
	if _, err := conn.Exec(ctx, `LOAD 'age'`); err != nil {
		return fmt.Errorf("load age extension: %w", err)
	}
	if _, err := conn.Exec(ctx, `SET search_path = ag_catalog, "$user", public`); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	return nil
}

// returnColumns extracts the column aliases of a Cypher query's RETURN
// clause, respecting nesting depth so map/list literal commas do not split
// a column. Defaults to []string{"data"} if no RETURN clause is found.
func returnColumns(query string) []string {
	clause := extractReturnClause(query)
	if clause == "" {
		return []string{"data"}
	}
	parts := splitTopLevel(clause)
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		cols = append(cols, columnAlias(p))
	}
	if len(cols) == 0 {
		return []string{"data"}
	}
	return cols
}

var returnTerminators = []string{"ORDER BY", "SKIP", "LIMIT"}

// extractReturnClause finds the first word-boundary RETURN and returns the
// text between it and whichever terminator keyword (ORDER BY/SKIP/LIMIT)
// comes first, or the rest of the query if none does.
func extractReturnClause(query string) string {
	idx := findWordBoundary(query, "RETURN")
	if idx < 0 {
		return ""
	}
	rest := query[idx+len("RETURN"):]

	end := len(rest)
	for _, term := range returnTerminators {
		if i := findWordBoundary(rest, term); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end])
}

// findWordBoundary case-insensitively locates word as a standalone token
// (not a substring of a longer identifier) in s, returning its byte offset
// or -1.
func findWordBoundary(s, word string) int {
	upper := strings.ToUpper(s)
	word = strings.ToUpper(word)
	searchFrom := 0
	for {
		rel := strings.Index(upper[searchFrom:], word)
		if rel < 0 {
			return -1
		}
		idx := searchFrom + rel
		before := byte(' ')
		if idx > 0 {
			before = upper[idx-1]
		}
		after := byte(' ')
		if idx+len(word) < len(upper) {
			after = upper[idx+len(word)]
		}
		if !isIdentByte(before) && !isIdentByte(after) {
			return idx
		}
		searchFrom = idx + len(word)
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// splitTopLevel splits s on commas that are not nested inside (), [], or {}.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
			// inside a string literal; ignore structural characters
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	last := strings.TrimSpace(s[start:])
	if last != "" {
		parts = append(parts, last)
	}
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}

// columnAlias derives a result-column name from a single RETURN expression:
// an explicit "AS alias" wins; otherwise the expression's trailing
// identifier segment is sanitised into one.
func columnAlias(expr string) string {
	if idx := findWordBoundary(expr, "AS"); idx >= 0 {
		alias := strings.TrimSpace(expr[idx+len("AS"):])
		if alias != "" {
			return sanitiseIdent(alias)
		}
	}
	return sanitiseIdent(expr)
}

func sanitiseIdent(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := strings.ToLower(b.String())
	if out == "" {
		return "data"
	}
	return out
}

func quoteIdentLiteral(name string) string {
	escaped := strings.ReplaceAll(name, "'", "''")
	return "'" + escaped + "'"
}

// decodeAgeValue turns an agtype text cell into a native Go value. Values
// carrying the engine's tagged-literal suffixes (::vertex, ::edge) decode
// into maps with the tag recorded under "_age_type"; plain agtype scalars
// and objects decode via JSON; anything that fails to parse is returned
// as-is by the caller.
func decodeAgeValue(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if tagged, tag, ok := stripTag(raw); ok {
		var m map[string]any
		if err := json.Unmarshal([]byte(tagged), &m); err != nil {
			return nil, err
		}
		m["_age_type"] = tag
		return m, nil
	}

	// Plain agtype scalars are valid JSON except for bare numerics with a
	// trailing type suffix (e.g. "5::numeric"), which AGE does not emit for
	// cypher() results, so a direct decode attempt is sufficient.
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, nil
	}

	// Fall back to a bare integer/float, then treat as an opaque string.
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	return raw, nil
}

func stripTag(raw string) (body string, tag string, ok bool) {
	for _, t := range []string{"::vertex", "::edge", "::path"} {
		if strings.HasSuffix(raw, t) {
			return strings.TrimSpace(strings.TrimSuffix(raw, t)), strings.TrimPrefix(t, "::"), true
		}
	}
	return raw, "", false
}
