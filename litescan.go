// Package litescan is a read-only reader and query engine for the SQLite
// version-3 on-disk file format: no cgo, no native SQLite library, just the
// pager, B-tree walker, record codec, and planner in this module's internal
// packages wired up behind a small public façade. Grounded on the teacher's
// internal/backend.Engine: a logger-carrying handle built by a Start/Config
// pair, generalized here from a write-oriented engine with a WAL and pager
// pool to a read-only one with a single cache-backed pager.
package litescan

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/joeandaverde/litescan/internal/errs"
	"github.com/joeandaverde/litescan/internal/pager"
	"github.com/joeandaverde/litescan/internal/planner"
	"github.com/joeandaverde/litescan/internal/schema"
	"github.com/joeandaverde/litescan/internal/value"
	"github.com/joeandaverde/litescan/tsql"
	"github.com/joeandaverde/litescan/tsql/ast"
)

// Config mirrors the teacher's backend.Config: a small set of knobs Open
// applies before returning a usable Database, with defaults sensible enough
// that the zero value works.
type Config struct {
	CacheCapacity int
	Logger        *logrus.Logger
	Context       context.Context
}

// LoadConfig reads a YAML file into a Config, following the teacher's
// cmd/tinydb ListenConfig decode pattern. Fields absent from the file keep
// their Go zero values; callers typically layer this under explicit
// OpenOptions via WithConfig.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, &errs.IOError{Op: "open config", Err: err}
	}
	defer f.Close()

	var raw struct {
		CacheCapacity int    `yaml:"cache_capacity"`
		LogLevel      string `yaml:"log_level"`
	}
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil {
		return Config{}, &errs.FormatError{Msg: "invalid config file", Err: err}
	}

	cfg := Config{CacheCapacity: raw.CacheCapacity}
	if raw.LogLevel != "" {
		lvl, err := logrus.ParseLevel(raw.LogLevel)
		if err != nil {
			return Config{}, &errs.FormatError{Msg: "invalid log_level in config file", Err: err}
		}
		log := logrus.New()
		log.SetLevel(lvl)
		cfg.Logger = log
	}
	return cfg, nil
}

// OpenOption customizes Open's Config in the manner of the pager package's
// functional options.
type OpenOption func(*Config)

// WithConfig overrides every field Open would otherwise default, typically
// with the result of LoadConfig.
func WithConfig(cfg Config) OpenOption {
	return func(c *Config) { *c = cfg }
}

// WithCacheCapacity overrides the pager's LRU page cache size.
func WithCacheCapacity(n int) OpenOption {
	return func(c *Config) { c.CacheCapacity = n }
}

// WithLogger injects a structured logger; Open defaults to logrus's
// standard logger when none is given.
func WithLogger(l *logrus.Logger) OpenOption {
	return func(c *Config) { c.Logger = l }
}

// Database is an open handle on one SQLite file: a pager, the loaded schema
// catalog, the logger its components write to, and a session id generated
// at Open. The session id is kept on the handle only; log lines do not
// carry it.
// It is read-only and safe for concurrent use by multiple goroutines — the
// pager beneath it serializes cache mutation internally (§5) — but a single
// handle is meant for one process, not shared across independently-crashing
// ones.
type Database struct {
	id      uuid.UUID
	log     *logrus.Logger
	ctx     context.Context
	p       pager.Pager
	catalog *schema.Catalog
	flock   *os.File
}

// Row is one result row: the projected column names alongside their values,
// in SELECT-list order.
type Row struct {
	Columns []string
	Values  []value.Value
}

// Open reads path's header, takes a shared advisory lock on the file for
// the handle's lifetime, and loads its schema catalog.
func Open(path string, opts ...OpenOption) (*Database, error) {
	cfg := Config{CacheCapacity: pager.DefaultCacheCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	id := uuid.New()
	log := cfg.Logger.WithField("session", id).Logger

	lockFile, err := os.Open(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Err: err}
	}
	if err := flockShared(lockFile); err != nil {
		log.Warnf("advisory shared lock unavailable on %s: %v", path, err)
	}

	p, err := pager.Open(path, pager.WithCacheCapacity(cfg.CacheCapacity), pager.WithLogger(log))
	if err != nil {
		lockFile.Close()
		return nil, err
	}

	cat, err := schema.Load(cfg.Context, p, log)
	if err != nil {
		p.Close()
		lockFile.Close()
		return nil, err
	}

	log.Infof("opened %s [tables: %d]", path, len(cat.Tables()))

	return &Database{
		id:      id,
		log:     log,
		ctx:     cfg.Context,
		p:       p,
		catalog: cat,
		flock:   lockFile,
	}, nil
}

// Close releases the pager's underlying file handle and advisory lock.
func (db *Database) Close() error {
	err := db.p.Close()
	if lockErr := db.flock.Close(); err == nil {
		err = lockErr
	}
	return err
}

// Tables returns the names of user tables, excluding sqlite_-prefixed
// system tables, per §6's public-operations contract.
func (db *Database) Tables() ([]string, error) {
	var names []string
	for _, t := range db.catalog.Tables() {
		if strings.HasPrefix(strings.ToLower(t.Name), "sqlite_") {
			continue
		}
		names = append(names, t.Name)
	}
	return names, nil
}

// CountTableRows sums a table's leaf cell counts without decoding any row.
func (db *Database) CountTableRows(name string) (uint64, error) {
	n, err := planner.CountRows(db.ctx, db.p, db.catalog, name)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// ExecuteQuery parses sql as a single SELECT statement and returns its
// result rows, per §6's execute_query.
func (db *Database) ExecuteQuery(sql string) ([]Row, error) {
	stmt, err := tsql.Parse(sql)
	if err != nil {
		return nil, &errs.UnsupportedSQLError{Msg: fmt.Sprintf("parse error: %v", err)}
	}
	sel, ok := stmt.(*ast.SelectStatement)
	if !ok {
		return nil, &errs.UnsupportedSQLError{Msg: "only SELECT statements are supported"}
	}

	res, err := planner.ExecuteSelect(db.ctx, db.p, db.catalog, sel)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(res.Rows))
	for i, values := range res.Rows {
		rows[i] = Row{Columns: res.Columns, Values: values}
	}
	return rows, nil
}
