// Package redisdraft persists document drafts in Redis. It serves as the
// persistence gateway when the backend is unreachable or for local work.
package redisdraft

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/lexical"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

// Draft is the stored state of one document.
type Draft struct {
	DocumentID  string
	Content     []byte
	Fingerprint uint64
	Revision    int64
	SavedAt     time.Time
}

// Store implements gateway.PersistenceGateway on a Redis hash per document.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ gateway.PersistenceGateway = (*Store)(nil)

// NewStore creates a Redis-backed draft store and checks the connection.
func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStoreWithClient(client, ttl), nil
}

// NewStoreWithClient creates a store from an existing Redis client.
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		client: client,
		prefix: "draft:",
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Store) key(documentID string) string {
	return s.prefix + documentID
}

// Save writes the content and bumps the revision in one transaction.
// Saving identical content is a no-op so the revision only moves on change.
func (s *Store) Save(ctx context.Context, documentID string, content []byte) error {
	key := s.key(documentID)
	fp := lexical.Fingerprint(content)

	current, err := s.client.HGet(ctx, key, "fingerprint").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read draft fingerprint: %w", err)
	}
	if current == formatFingerprint(fp) {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"content", content,
			"fingerprint", formatFingerprint(fp),
			"saved_at", s.now().UTC().Format(time.RFC3339Nano),
		)
		pipe.HIncrBy(ctx, key, "revision", 1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Load returns the latest draft, gateway.ErrNotFound when none exists.
func (s *Store) Load(ctx context.Context, documentID string) (Draft, error) {
	fields, err := s.client.HGetAll(ctx, s.key(documentID)).Result()
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	if len(fields) == 0 {
		return Draft{}, fmt.Errorf("draft %s: %w", documentID, gateway.ErrNotFound)
	}

	fp, err := strconv.ParseUint(fields["fingerprint"], 16, 64)
	if err != nil {
		return Draft{}, fmt.Errorf("parse draft fingerprint: %w", err)
	}
	rev, err := strconv.ParseInt(fields["revision"], 10, 64)
	if err != nil {
		return Draft{}, fmt.Errorf("parse draft revision: %w", err)
	}
	savedAt, _ := time.Parse(time.RFC3339Nano, fields["saved_at"])

	return Draft{
		DocumentID:  documentID,
		Content:     []byte(fields["content"]),
		Fingerprint: fp,
		Revision:    rev,
		SavedAt:     savedAt,
	}, nil
}

// Delete removes the draft.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	if err := s.client.Del(ctx, s.key(documentID)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}
