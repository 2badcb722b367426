package repository

import "time"

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires stored reports after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// PostgresOption applies a configuration option to the PostgresPublisher.
type PostgresOption func(*PostgresPublisher)

// WithSchemaMigration applies the archive schema when the publisher opens.
func WithSchemaMigration() PostgresOption {
	return func(p *PostgresPublisher) {
		p.migrate = true
	}
}
