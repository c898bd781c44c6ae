// Package store persists the high-score list. Every backend replaces the
// whole list on Save and returns it sorted on Load, so they can be swapped
// without touching the game.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tomz197/sshtargets/internal/config"
	"github.com/tomz197/sshtargets/internal/leaderboard"
)

var (
	ErrMalformed      = errors.New("store: malformed high-score data")
	ErrUnknownBackend = errors.New("store: unknown backend")
)

// Store loads and replaces the persisted high-score list.
type Store interface {
	Load(ctx context.Context) ([]leaderboard.Record, error)
	Save(ctx context.Context, records []leaderboard.Record) error
}

// Watcher is implemented by stores that can push changes made elsewhere.
// Watch blocks until ctx is done, calling fn with each new list.
type Watcher interface {
	Watch(ctx context.Context, fn func([]leaderboard.Record)) error
}

// Document is the persisted shape of the list.
type Document struct {
	Scores []leaderboard.Record `json:"scores"`
}

// Decode parses a document. A bare JSON array of records is also accepted.
// Empty input decodes to an empty list. IDs must be unique.
func Decode(data []byte) ([]leaderboard.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var records []leaderboard.Record
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		records = doc.Scores
	default:
		return nil, ErrMalformed
	}

	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		if r.Score < 0 {
			return nil, fmt.Errorf("%w: negative score %d", ErrMalformed, r.Score)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrMalformed, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return leaderboard.Normalize(records), nil
}

// Encode renders records as a Document.
func Encode(records []leaderboard.Record) ([]byte, error) {
	if records == nil {
		records = []leaderboard.Record{}
	}
	return json.Marshal(Document{Scores: records})
}

// Closer is implemented by stores holding connections.
type Closer interface {
	Close() error
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendFile:
		return NewFile(cfg.FilePath), nil
	case config.BackendHTTP:
		return NewHTTP(cfg.URL, HTTPOptions{WatchURL: cfg.WatchURL}), nil
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case config.BackendRedis:
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Close releases the store's resources when it holds any.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
