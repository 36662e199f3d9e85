package redis

import (
	"context"

	"github.com/kailas-cloud/invoicedex/internal/db"
)

// HSet writes all fields of a hash in one command, so a point is either
// stored whole or not at all.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}
