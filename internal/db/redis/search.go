package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/invoicedex/internal/db"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/vector"
)

const scoreField = "__vector_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// An unknown index yields db.ErrIndexNotFound.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	field := q.VectorField
	if field == "" {
		field = "vector"
	}
	knn := fmt.Sprintf("[KNN %d @%s $BLOB AS %s]", q.K, field, scoreField)

	query := "*=>" + knn
	if f := buildFilter(q.Filters); f != "" {
		query = "(" + f + ")=>" + knn
	}

	args := []string{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}
	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", string(vector.Encode(q.Vector)),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw)
}

// parseKNNResult reads the RESP2 reply [total, key1, fields1, key2, ...]
// and converts cosine distance to similarity, best first.
func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(pairs)}
		if d, ok := entry.Fields[scoreField]; ok {
			if dist, err := strconv.ParseFloat(d, 64); err == nil {
				entry.Score = 1 - dist
			}
			delete(entry.Fields, scoreField)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Score > entries[b].Score })
	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// buildFilter translates an expression into an FT.SEARCH pre-filter.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(expr.Must())+len(expr.MustNot()))
	for _, c := range expr.Must() {
		parts = append(parts, buildCondition(c))
	}
	for _, c := range expr.MustNot() {
		parts = append(parts, "-"+buildCondition(c))
	}
	return strings.Join(parts, " ")
}

func buildCondition(c filter.Condition) string {
	if c.IsMatch() {
		return fmt.Sprintf("@%s:{%s}", c.Key(), tagEscaper.Replace(c.Match()))
	}
	r := c.Range()
	lo, hi := "-inf", "+inf"
	switch {
	case r.GT() != nil:
		lo = "(" + formatFloat(*r.GT())
	case r.GTE() != nil:
		lo = formatFloat(*r.GTE())
	}
	switch {
	case r.LT() != nil:
		hi = "(" + formatFloat(*r.LT())
	case r.LTE() != nil:
		hi = formatFloat(*r.LTE())
	}
	return fmt.Sprintf("@%s:[%s %s]", c.Key(), lo, hi)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// tagEscaper escapes TAG query punctuation; vendor names routinely carry
// dots, commas and spaces ("Sp. z o.o.").
var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>",
	"{", "\\{", "}", "\\}", "[", "\\[", "]", "\\]",
	"\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;",
	"!", "\\!", "@", "\\@", "#", "\\#", "$", "\\$",
	"%", "\\%", "^", "\\^", "&", "\\&", "*", "\\*",
	"(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+",
	"=", "\\=", "~", "\\~", "|", "\\|", "/", "\\/",
	" ", "\\ ",
)
