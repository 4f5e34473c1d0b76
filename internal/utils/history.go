package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/xid"
)

// ErrHistoryDisabled is returned by OpenHistory when no Postgres host is configured.
var ErrHistoryDisabled = errors.New("conversion history disabled")

// ConversionRecord is one attempted format of one run.
type ConversionRecord struct {
	RunID  string
	Source string
	Format string
	Output string
	Cached bool
	Err    error
}

// Status is "ok" for a successful record and "failed" otherwise.
func (r ConversionRecord) Status() string {
	if r.Err != nil {
		return "failed"
	}
	return "ok"
}

// HistoryStore appends conversion records to the conversions table.
type HistoryStore struct {
	mu sync.Mutex
	db *sql.DB
}

// postgresDSN builds a pgx URL from cfg. A Host that already is a URL is
// used as is. Host may carry its own port, IPv6 literals included.
func postgresDSN(cfg PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"host", cfg.Host}, {"database", cfg.Database}, {"user", cfg.User},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("postgres %s not set", strings.Join(missing, ", "))
	}

	port := 5432
	if cfg.Port != 0 {
		port = cfg.Port
	}
	host, portStr, err := net.SplitHostPort(cfg.Host)
	if err != nil {
		host, portStr = strings.Trim(cfg.Host, "[]"), strconv.Itoa(port)
	}

	dsn := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, portStr),
		Path:   "/" + cfg.Database,
		User:   url.User(cfg.User),
	}
	if cfg.Password != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return dsn.String(), nil
}

// OpenHistory connects to Postgres and makes sure the conversions table exists.
func OpenHistory(ctx context.Context, cfg PostgresConfig) (*HistoryStore, error) {
	if cfg.Host == "" {
		return nil, ErrHistoryDisabled
	}
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// One writer per CLI run.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &HistoryStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *HistoryStore) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ddl1 := `CREATE TABLE IF NOT EXISTS conversions (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		format TEXT NOT NULL,
		output TEXT,
		cached BOOLEAN NOT NULL DEFAULT false,
		status TEXT NOT NULL,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	ddl2 := `CREATE INDEX IF NOT EXISTS idx_conversions_run_id ON conversions (run_id);`
	if _, err := s.db.ExecContext(ctx, ddl1); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, ddl2); err != nil {
		return err
	}
	return nil
}

// Record inserts rec. A nil store records nothing.
func (s *HistoryStore) Record(ctx context.Context, rec ConversionRecord) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("history store closed")
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var errText sql.NullString
	if rec.Err != nil {
		errText = sql.NullString{String: rec.Err.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, run_id, source, format, output, cached, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`,
		xid.New().String(), rec.RunID, rec.Source, rec.Format, rec.Output, rec.Cached, rec.Status(), errText,
	)
	return err
}

// Close releases the connection pool. It is safe to call more than once.
func (s *HistoryStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
