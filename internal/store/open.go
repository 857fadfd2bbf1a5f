package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/empenhos/internal/config"
)

// DB is an open database handle paired with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect

	release func()
}

const defaultConnectTimeout = 10 * time.Second

// Wrap pairs an already open handle with a dialect.
func Wrap(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, Dialect: dialect}
}

// Close closes the handle and any pool underneath it.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.release != nil {
		db.release()
	}
	return err
}

// Open connects to the configured database and verifies it is reachable.
// A failed connectivity check is returned as a *ConnectivityError.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var db *DB
	switch dialect.Name {
	case Postgres.Name:
		db, err = openPostgres(ctx, cfg)
	case MySQL.Name:
		db, err = openMySQL(cfg)
	default:
		db, err = openSQLite(cfg)
	}
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &ConnectivityError{Op: "connect", Err: err}
	}
	return db, nil
}

// openPostgres builds a pgx pool and exposes it through database/sql.
func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &ConnectivityError{Op: "create pool", Err: err}
	}

	return &DB{
		DB:      stdlib.OpenDBFromPool(pool),
		Dialect: Postgres,
		release: pool.Close,
	}, nil
}

func postgresDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   hostPort(cfg.Host, cfg.Port, 5432),
		Path:   "/" + cfg.Name,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

func openMySQL(cfg config.DatabaseConfig) (*DB, error) {
	dsn, err := mysqlDSN(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	applyPool(sqlDB, cfg)
	return &DB{DB: sqlDB, Dialect: MySQL}, nil
}

func mysqlDSN(cfg config.DatabaseConfig) (string, error) {
	var mc *mysql.Config
	if cfg.URL != "" {
		var err error
		mc, err = mysql.ParseDSN(strings.TrimPrefix(cfg.URL, "mysql://"))
		if err != nil {
			return "", fmt.Errorf("parse database config: %w", err)
		}
	} else {
		mc = mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(cfg.Host, cfg.Port, 3306)
		mc.DBName = cfg.Name
	}
	// DATE and DATETIME columns scan into time.Time.
	mc.ParseTime = true
	if cfg.ConnectTimeout > 0 {
		mc.Timeout = cfg.ConnectTimeout
	}
	return mc.FormatDSN(), nil
}

func openSQLite(cfg config.DatabaseConfig) (*DB, error) {
	dsn := cfg.URL
	if dsn == "" {
		dsn = cfg.Name
	}
	dsn = strings.TrimPrefix(dsn, "sqlite://")

	sqlDB, err := sql.Open("sqlite", SQLiteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	applyPool(sqlDB, cfg)
	return &DB{DB: sqlDB, Dialect: SQLite}, nil
}

// SQLiteDSN adds the connection pragmas every sqlite connection needs:
// enforced foreign keys and a busy timeout so concurrent writers wait.
func SQLiteDSN(path string) string {
	for _, pragma := range []string{"foreign_keys(1)", "busy_timeout(5000)"} {
		name, _, _ := strings.Cut(pragma, "(")
		if strings.Contains(path, "_pragma="+name) {
			continue
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "_pragma=" + pragma
	}
	return path
}

func applyPool(db *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	db.SetMaxIdleConns(max(cfg.MinConns, 2))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
}

func hostPort(host string, port, fallback int) string {
	if port == 0 {
		port = fallback
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
