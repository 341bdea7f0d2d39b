package redis

import (
	"context"
	"fmt"
	"time"

	"atm-ledger/pkg/ledger"

	"github.com/redis/rueidis"
)

// Store keeps each account's log in a Redis list; RPUSH appends, LRANGE reads.
// Records use the same text encoding as the file backend.
type Store struct {
	client rueidis.Client
	name   string
	keys   *ledger.KeyPattern
	config Config
}

// Config holds Redis connection settings.
type Config struct {
	Name string
	// Addr is the Redis server address for single node/sentinel mode.
	// For cluster mode, use ClusterAddrs instead.
	// Examples: "localhost:6379", "redis.example.com:6379"
	Addr string
	// ClusterAddrs is a list of Redis cluster node addresses.
	// If set, cluster mode is enabled automatically.
	ClusterAddrs []string
	Username     string
	Password     string
	// DB is the Redis database number (0-15).
	// Note: In cluster mode, only DB 0 is supported.
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// Location is used to parse timestamps (default: time.Local)
	Location *time.Location
}

// DefaultConfig returns a single-node configuration on localhost.
func DefaultConfig() Config {
	return Config{
		Name:         "redis",
		Addr:         "localhost:6379",
		KeyPrefix:    "atm:ledger",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewStore connects to Redis and verifies the connection with PING.
func NewStore(config Config) (*Store, error) {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "atm:ledger"
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	var initAddress []string
	if len(config.ClusterAddrs) > 0 {
		initAddress = config.ClusterAddrs
	} else if config.Addr != "" {
		initAddress = []string{config.Addr}
	} else {
		return nil, fmt.Errorf("redis: no addresses configured (set Addr or ClusterAddrs)")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return &Store{
		client: client,
		name:   config.Name,
		keys:   ledger.NewKeyPattern(config.KeyPrefix, ":"),
		config: config,
	}, nil
}

// Open returns the log for accountNumber.
func (s *Store) Open(accountNumber string) ledger.TransactionLog {
	return &Log{
		client: s.client,
		key:    s.Key(accountNumber),
		loc:    s.config.Location,
	}
}

// Key returns the Redis list key used for accountNumber.
func (s *Store) Key(accountNumber string) string {
	return s.keys.Build("tx", accountNumber)
}

// Name returns the backend name.
func (s *Store) Name() string {
	return s.name
}

// Close closes the Redis client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Delete removes the log of accountNumber. Intended for tests and tooling only.
func (s *Store) Delete(ctx context.Context, accountNumber string) error {
	cmd := s.client.B().Del().Key(s.Key(accountNumber)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Log is one account's Redis list.
type Log struct {
	client rueidis.Client
	key    string
	loc    *time.Location
}

// Append pushes one record to the tail of the list.
func (l *Log) Append(ctx context.Context, tx ledger.Transaction) error {
	cmd := l.client.B().Rpush().Key(l.key).Element(tx.Record()).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", l.key, err)
	}
	return nil
}

// ReadAll returns the whole list in order.
func (l *Log) ReadAll(ctx context.Context) ([]ledger.Transaction, error) {
	cmd := l.client.B().Lrange().Key(l.key).Start(0).Stop(-1).Build()
	resp := l.client.Do(ctx, cmd)
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", l.key, err)
	}

	lines, err := resp.AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: failed to read response: %w", l.key, err)
	}
	// Redis has no empty lists: a missing key and an empty log are the same thing.
	if len(lines) == 0 {
		return nil, ledger.ErrLogNotFound
	}

	txs, err := ledger.ParseRecords(lines, l.loc)
	if err != nil {
		return nil, fmt.Errorf("redis log %s: %w", l.key, err)
	}
	return txs, nil
}
