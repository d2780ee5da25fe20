// Package redis provides Redis-backed implementations of the ports:
// a TraceStore for episode decisions and a Locker for cross-process engine copies.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
)

const defaultPrefix = "stepbnb:trace:"

// Store implements ports.TraceStore with one Redis list per episode and a sorted
// set indexing the episodes by expiry in unix milliseconds.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ ports.TraceStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires traces ttl after their last append. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewFromClient creates a store on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New connects to addr and creates a store.
func New(addr string, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

func (s *Store) key(episodeID string) string {
	return s.prefix + episodeID
}

func (s *Store) index() string {
	return s.prefix + "index"
}

// Append pushes step onto the episode list.
func (s *Store) Append(ctx context.Context, episodeID string, step domain.Step) error {
	raw, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("failed to encode step: %w", err)
	}

	score := math.Inf(1)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).UnixMilli())
	}
	_, err = s.client.TxPipelined(ctx, func(p backend.Pipeliner) error {
		key := s.key(episodeID)
		p.RPush(ctx, key, raw)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		p.ZAdd(ctx, s.index(), backend.Z{Score: score, Member: episodeID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append step: %w", err)
	}
	return nil
}

// Load returns the steps of an episode.
func (s *Store) Load(ctx context.Context, episodeID string) ([]domain.Step, error) {
	raws, err := s.client.LRange(ctx, s.key(episodeID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	if len(raws) == 0 {
		return nil, domain.ErrEpisodeNotFound
	}
	steps := make([]domain.Step, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal([]byte(raw), &steps[i]); err != nil {
			return nil, fmt.Errorf("failed to decode step %d: %w", i, err)
		}
	}
	return steps, nil
}

// Delete removes the episode trace.
func (s *Store) Delete(ctx context.Context, episodeID string) error {
	_, err := s.client.TxPipelined(ctx, func(p backend.Pipeliner) error {
		p.Del(ctx, s.key(episodeID))
		p.ZRem(ctx, s.index(), episodeID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete trace: %w", err)
	}
	return nil
}

// List returns the ids of stored episodes. Expired entries are pruned from the index.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if s.ttl > 0 {
		now := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if err := s.client.ZRemRangeByScore(ctx, s.index(), "-inf", "("+now).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune index: %w", err)
		}
	}
	ids, err := s.client.ZRange(ctx, s.index(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	return ids, nil
}
