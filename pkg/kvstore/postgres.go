package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds the connection settings for the Postgres-backed store.
type PostgresConfig struct {
	ConnectionString string        `env:"KVSTORE_PG_CONN_URL,required"`
	Table            string        `env:"KVSTORE_PG_TABLE" envDefault:"records"`
	MaxOpenConns     int32         `env:"KVSTORE_PG_MAX_OPEN_CONNS" envDefault:"10"`
	RetryAttempts    int           `env:"KVSTORE_PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval    time.Duration `env:"KVSTORE_PG_RETRY_INTERVAL" envDefault:"5s"`
}

// Postgres is a Store backed by a two-column key/value table:
//
//	CREATE TABLE records (key TEXT PRIMARY KEY, value BYTEA NOT NULL);
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// ConnectPostgres establishes a connection pool with bounded retries and
// wraps it in a Store.
func ConnectPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParsePostgresConfig, err)
	}
	poolConfig.MaxConns = cfg.MaxOpenConns

	for i := 0; i < cfg.RetryAttempts; i++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return NewPostgres(pool, cfg.Table), nil
			}
			pool.Close()
		}
		time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
	}

	return nil, ErrPostgresNotReady
}

// NewPostgres wraps an existing connection pool in a Store. The table must
// already exist.
func NewPostgres(pool *pgxpool.Pool, table string) *Postgres {
	if table == "" {
		table = "records"
	}
	return &Postgres{pool: pool, table: table}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM `+p.table+` WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO `+p.table+` (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := p.pool.Exec(ctx,
		`DELETE FROM `+p.table+` WHERE key = $1`, key)
	return err
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key FROM `+p.table+` WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
