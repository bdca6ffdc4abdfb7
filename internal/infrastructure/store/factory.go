package store

import (
	"context"
	"database/sql"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Options selects and configures a backend.
type Options struct {
	Kind        string
	FileDir     string
	RedisAddr   string
	RedisPrefix string
	DatabaseURL string
	MySQLDSN    string
	DynamoTable string
}

// Open constructs a StateStore by kind. The returned close function
// releases any connection the backend holds.
func Open(ctx context.Context, opts Options) (StateStore, func() error, error) {
	noop := func() error { return nil }
	switch opts.Kind {
	case "memory", "mem", "":
		return NewMemoryStore(), noop, nil
	case "file":
		if opts.FileDir == "" {
			return nil, nil, fmt.Errorf("directory required for file store")
		}
		s, err := NewFileStore(opts.FileDir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisStore(client, opts.RedisPrefix), client.Close, nil
	case "postgres":
		db, err := sql.Open("postgres", opts.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s := NewPostgresStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return s, db.Close, nil
	case "pgx":
		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s := NewPgxStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return s, func() error { pool.Close(); return nil }, nil
	case "mysql":
		db, err := sql.Open("mysql", opts.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s := NewMySQLStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return s, db.Close, nil
	case "dynamo", "dynamodb":
		if opts.DynamoTable == "" {
			return nil, nil, fmt.Errorf("table name required for dynamo store")
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewDynamoStore(dynamodb.NewFromConfig(cfg), opts.DynamoTable), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind: %s", opts.Kind)
	}
}
