// Package sqlite is a single-file point store on modernc.org/sqlite.
// Vectors are float32 blobs; queries scan the collection and rank by exact
// cosine similarity, which suits local and CLI use.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/invoicedex/internal/db"
	"github.com/kailas-cloud/invoicedex/internal/vector"
)

//go:embed schema.sql
var schema string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var _ db.PointTable = (*Store)(nil)

// Store implements db.PointTable.
type Store struct {
	db   *sql.DB
	path string
}

type attrs struct {
	Tags    map[string]string  `json:"tags"`
	Numbers map[string]float64 `json:"numbers"`
}

// NewStore opens (creating if needed) the database at path and applies the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == MemoryPath {
		// every connection would otherwise get its own empty database
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: conn, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady returns once the database answers a ping.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Ping(ctx)
}

// CollectionExists reports whether the collection has been created.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, _, err := s.collection(ctx, name)
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// CreateCollection registers a collection. An existing one yields db.ErrIndexExists.
func (s *Store) CreateCollection(ctx context.Context, name string, dim int, metric db.DistanceMetric) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if metric != db.DistanceCosine {
		return fmt.Errorf("metric %s is not supported", metric)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections(name, dim, metric) VALUES(?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		name, dim, string(metric))
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	if n == 0 {
		return db.ErrIndexExists
	}
	return nil
}

// UpsertPoint writes one point with a single statement.
func (s *Store) UpsertPoint(ctx context.Context, collection string, p *db.PointRecord) error {
	dim, _, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	if len(p.Vector) != dim {
		return fmt.Errorf("%w: got %d, collection has %d", db.ErrDimMismatch, len(p.Vector), dim)
	}

	a, err := json.Marshal(attrs{Tags: p.Tags, Numbers: p.Numbers})
	if err != nil {
		return fmt.Errorf("marshal attrs: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO points(collection, id, vector, payload, attrs) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET vector = excluded.vector, payload = excluded.payload, attrs = excluded.attrs`,
		collection, p.ID, vector.Encode(p.Vector), p.Payload, string(a))
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}
	return nil
}

// QueryPoints ranks every point of the collection that passes the filter
// and returns the best q.K, highest similarity first. Ties keep insertion order.
func (s *Store) QueryPoints(ctx context.Context, collection string, q *db.PointQuery) ([]db.ScoredRecord, error) {
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	dim, _, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(q.Vector) != dim {
		return nil, fmt.Errorf("%w: got %d, collection has %d", db.ErrDimMismatch, len(q.Vector), dim)
	}
	query, err := vector.NewQuery(q.Vector)
	if err != nil {
		return nil, nil // a zero query vector matches nothing
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, payload, attrs FROM points WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	var hits []db.ScoredRecord
	for rows.Next() {
		var (
			id       string
			blob     []byte
			payload  []byte
			attrJSON string
		)
		if err := rows.Scan(&id, &blob, &payload, &attrJSON); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: err}
		}

		if !q.Filters.IsEmpty() {
			var a attrs
			if err := json.Unmarshal([]byte(attrJSON), &a); err != nil {
				return nil, fmt.Errorf("point %s attrs: %w", id, err)
			}
			if !q.Filters.Eval(a.Tags, a.Numbers) {
				continue
			}
		}

		v, err := vector.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("point %s: %w", id, err)
		}
		score, err := query.Similarity(v)
		if err != nil {
			continue // zero vector never matches
		}
		hits = append(hits, db.ScoredRecord{ID: id, Score: score, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

func (s *Store) collection(ctx context.Context, name string) (int, db.DistanceMetric, error) {
	var (
		dim    int
		metric string
	)
	err := s.db.QueryRowContext(ctx, `SELECT dim, metric FROM collections WHERE name = ?`, name).Scan(&dim, &metric)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", db.ErrIndexNotFound
	}
	if err != nil {
		return 0, "", &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return dim, db.DistanceMetric(metric), nil
}
