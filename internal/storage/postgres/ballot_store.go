// Package postgres persists flattened poll ballots to Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "poll_ballots"

// Columns written by SaveBallots, in CopyFrom order.
var ballotColumns = []string{"poll", "year", "week", "poll_date", "voter", "affiliated_team", "rank", "team"}

// BallotStoreConfig controls the Postgres connection pool.
type BallotStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// BallotStore writes one row per flattened ballot slot.
type BallotStore struct {
	pool   txBeginner
	table  string
	logger *zap.Logger
}

// NewBallotStore connects to Postgres using the provided config.
func NewBallotStore(ctx context.Context, cfg BallotStoreConfig, logger *zap.Logger) (*BallotStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewBallotStoreWithPool(pool, cfg.Table, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewBallotStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBallotStoreWithPool(pool txBeginner, table string, logger *zap.Logger) (*BallotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BallotStore{pool: pool, table: table, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *BallotStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the ballots table when it does not exist.
func (s *BallotStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	poll            text    NOT NULL,
	year            integer NOT NULL,
	week            integer NOT NULL,
	poll_date       date,
	voter           text    NOT NULL,
	affiliated_team text    NOT NULL DEFAULT '',
	rank            integer NOT NULL,
	team            text    NOT NULL,
	PRIMARY KEY (poll, year, week, voter, rank)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// SaveBallots replaces every stored row for the set's poll week with the
// set's flattened records, inside one transaction.
func (s *BallotStore) SaveBallots(ctx context.Context, set *poll.BallotSet) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("ballot store is not configured")
	}
	if set == nil {
		return 0, fmt.Errorf("ballot set is required")
	}
	id := set.Identity

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE poll = $1 AND year = $2 AND week = $3`, s.table)
	tag, err := tx.Exec(ctx, deleteQuery, string(id.Type), id.Year, id.Week)
	if err != nil {
		return 0, rollback(ctx, tx, fmt.Errorf("delete previous rows: %w", err))
	}
	if tag.RowsAffected() > 0 {
		s.logger.Info("replacing stored ballots", zap.Stringer("poll", id), zap.Int64("rows", tag.RowsAffected()))
	}

	rows := flatRows(set)
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, ballotColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, rollback(ctx, tx, fmt.Errorf("copy ballots: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit ballots: %w", err)
	}
	return copied, nil
}

func flatRows(set *poll.BallotSet) [][]any {
	records := poll.Flatten(set)
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		var date any
		if r.Date != nil {
			date = *r.Date
		}
		rows = append(rows, []any{
			string(set.Identity.Type),
			r.Year,
			r.Week,
			date,
			r.Voter,
			r.AffiliatedTeam,
			r.Rank,
			r.Team,
		})
	}
	return rows
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}
