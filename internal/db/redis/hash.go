package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tagrec/internal/db"
)

// pipelineSize caps the commands sent in one DoMulti round-trip.
const pipelineSize = 128

// HSetMulti stores hashes with pipelined HSETs, pipelineSize per round-trip.
// It stops at the first failed chunk; earlier chunks stay written.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	for start := 0; start < len(items); start += pipelineSize {
		chunk := items[start:min(start+pipelineSize, len(items))]

		cmds := make([]rueidis.Completed, len(chunk))
		for i, item := range chunk {
			cmds[i] = s.hset(item.Key, item.Fields)
		}

		for i, res := range s.client.DoMulti(ctx, cmds...) {
			if err := res.Error(); err != nil {
				return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", chunk[i].Key, err)}
			}
		}
	}
	return nil
}

func (s *Store) hset(key string, fields map[string]string) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
