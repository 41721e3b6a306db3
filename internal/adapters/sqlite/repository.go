package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"algoTrader/internal/domain"
	"algoTrader/internal/ports"
)

// Repository implements ports.PortfolioRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

var _ ports.PortfolioRepository = (*Repository)(nil)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository: %w", ports.ErrInvalidConfig)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/algo_trader.db"
	}
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(ctx, err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(ctx, err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(ctx, err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serialises writers; WAL keeps readers cheap.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(ctx); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(ctx, err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(ctx, "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		initial_capital REAL NOT NULL,
		cash REAL NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id TEXT NOT NULL REFERENCES portfolios (id) ON DELETE CASCADE,
		symbol TEXT NOT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		current_price REAL NOT NULL,
		direction TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		stop_loss REAL NULL,
		take_profit REAL NULL,
		UNIQUE (portfolio_id, symbol)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id TEXT NOT NULL REFERENCES portfolios (id) ON DELETE CASCADE,
		timestamp TIMESTAMP NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		value REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id TEXT NOT NULL REFERENCES portfolios (id) ON DELETE CASCADE,
		timestamp TIMESTAMP NOT NULL,
		cash REAL NOT NULL,
		positions_value REAL NOT NULL,
		total_value REAL NOT NULL,
		total_pnl REAL NOT NULL,
		total_pnl_pct REAL NOT NULL,
		num_positions INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id TEXT NOT NULL REFERENCES portfolios (id) ON DELETE CASCADE,
		timestamp TIMESTAMP NOT NULL,
		symbol TEXT NOT NULL,
		signal_type TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		confidence REAL NOT NULL,
		strategy TEXT NOT NULL,
		metadata TEXT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_portfolio ON trades (portfolio_id, id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_portfolio_time ON snapshots (portfolio_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_signals_portfolio_time ON signals (portfolio_id, timestamp);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- Portfolios ---

// CreatePortfolio inserts a portfolio header row.
func (r *Repository) CreatePortfolio(ctx context.Context, rec *ports.PortfolioRecord) error {
	const query = `
	INSERT INTO portfolios (id, name, initial_capital, cash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.Name, rec.InitialCapital, rec.Cash, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("portfolio %s: %w", rec.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert portfolio %s: %w: %w", rec.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Portfolio created", map[string]interface{}{"portfolioID": rec.ID})
	return nil
}

// GetPortfolio retrieves a portfolio header by id.
func (r *Repository) GetPortfolio(ctx context.Context, id string) (*ports.PortfolioRecord, error) {
	const query = `
	SELECT id, name, initial_capital, cash, created_at, updated_at
	FROM portfolios WHERE id = ?`

	rec := &ports.PortfolioRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Name, &rec.InitialCapital, &rec.Cash, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query portfolio %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return rec, nil
}

// UpdatePortfolio rewrites the mutable columns of a portfolio header.
func (r *Repository) UpdatePortfolio(ctx context.Context, rec *ports.PortfolioRecord) error {
	const query = `UPDATE portfolios SET name = ?, cash = ?, updated_at = ? WHERE id = ?`

	rec.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, rec.Name, rec.Cash, rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update portfolio %s: %w: %w", rec.ID, ports.ErrUpdateFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for portfolio %s: %w", rec.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("portfolio %s not found for update: %w", rec.ID, ports.ErrNotFound)
	}
	return nil
}

// --- Positions ---

// UpsertPosition stores the open position for its symbol, replacing any previous row.
func (r *Repository) UpsertPosition(ctx context.Context, portfolioID string, pos *domain.Position) error {
	const query = `
	INSERT INTO positions (portfolio_id, symbol, quantity, entry_price, current_price, direction, entry_time, stop_loss, take_profit)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (portfolio_id, symbol) DO UPDATE SET
		quantity = excluded.quantity,
		entry_price = excluded.entry_price,
		current_price = excluded.current_price,
		direction = excluded.direction,
		entry_time = excluded.entry_time,
		stop_loss = excluded.stop_loss,
		take_profit = excluded.take_profit`

	_, err := r.db.ExecContext(ctx, query,
		portfolioID, pos.Symbol, pos.Quantity, pos.EntryPrice, pos.CurrentPrice, string(pos.Direction),
		pos.EntryTime.UTC(), nullFloat(pos.StopLoss), nullFloat(pos.TakeProfit))
	if err != nil {
		return fmt.Errorf("failed to upsert position %s/%s: %w: %w", portfolioID, pos.Symbol, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Position stored", map[string]interface{}{"portfolioID": portfolioID, "symbol": pos.Symbol, "quantity": pos.Quantity})
	return nil
}

// DeletePosition removes the position row for symbol. Deleting a missing row is not an error.
func (r *Repository) DeletePosition(ctx context.Context, portfolioID, symbol string) error {
	const query = `DELETE FROM positions WHERE portfolio_id = ? AND symbol = ?`
	if _, err := r.db.ExecContext(ctx, query, portfolioID, symbol); err != nil {
		return fmt.Errorf("failed to delete position %s/%s: %w: %w", portfolioID, symbol, ports.ErrUpdateFailed, err)
	}
	return nil
}

// ListPositions returns the open positions of a portfolio ordered by symbol.
func (r *Repository) ListPositions(ctx context.Context, portfolioID string) ([]*domain.Position, error) {
	const query = `
	SELECT id, symbol, quantity, entry_price, current_price, direction, entry_time, stop_loss, take_profit
	FROM positions WHERE portfolio_id = ? ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for %s: %w: %w", portfolioID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// --- Trades ---

// RecordTrade appends a trade record and returns its assigned ID.
func (r *Repository) RecordTrade(ctx context.Context, portfolioID string, trade *domain.TradeRecord) (int64, error) {
	const query = `
	INSERT INTO trades (portfolio_id, timestamp, symbol, action, quantity, price, value)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		portfolioID, trade.Timestamp.UTC(), trade.Symbol, string(trade.Action), trade.Quantity, trade.Price, trade.Value)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for %s: %w: %w", trade.Symbol, ports.ErrUpdateFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "action": string(trade.Action)})
	return id, nil
}

// ListTrades returns the trade log of a portfolio in insertion order.
func (r *Repository) ListTrades(ctx context.Context, portfolioID string) ([]*domain.TradeRecord, error) {
	const query = `
	SELECT id, timestamp, symbol, action, quantity, price, value
	FROM trades WHERE portfolio_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w: %w", portfolioID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- Snapshots ---

// SaveSnapshot stores a valuation snapshot and returns its assigned ID.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *ports.Snapshot) (int64, error) {
	const query = `
	INSERT INTO snapshots (portfolio_id, timestamp, cash, positions_value, total_value, total_pnl, total_pnl_pct, num_positions)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		snap.PortfolioID, snap.Timestamp.UTC(), snap.Cash, snap.PositionsValue, snap.TotalValue,
		snap.TotalPNL, snap.TotalPNLPct, snap.NumPositions)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot for %s: %w: %w", snap.PortfolioID, ports.ErrUpdateFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for snapshot: %w", err)
	}
	snap.ID = id
	return id, nil
}

// ListSnapshots returns up to limit snapshots, newest first. limit <= 0 returns all.
func (r *Repository) ListSnapshots(ctx context.Context, portfolioID string, limit int) ([]*ports.Snapshot, error) {
	const query = `
	SELECT id, portfolio_id, timestamp, cash, positions_value, total_value, total_pnl, total_pnl_pct, num_positions
	FROM snapshots WHERE portfolio_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, portfolioID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w: %w", portfolioID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	snaps := make([]*ports.Snapshot, 0)
	for rows.Next() {
		s := &ports.Snapshot{}
		if err := rows.Scan(&s.ID, &s.PortfolioID, &s.Timestamp, &s.Cash, &s.PositionsValue,
			&s.TotalValue, &s.TotalPNL, &s.TotalPNLPct, &s.NumPositions); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return snaps, nil
}

// --- Signals ---

// RecordSignal stores a strategy signal; metadata is kept as JSON.
func (r *Repository) RecordSignal(ctx context.Context, rec *ports.SignalRecord) (int64, error) {
	const query = `
	INSERT INTO signals (portfolio_id, timestamp, symbol, signal_type, price, quantity, confidence, strategy, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var metadata sql.NullString
	if len(rec.Signal.Metadata) > 0 {
		raw, err := json.Marshal(rec.Signal.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to encode signal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	s := rec.Signal
	result, err := r.db.ExecContext(ctx, query,
		rec.PortfolioID, rec.Timestamp.UTC(), s.Symbol, string(s.Type), s.Price, s.Quantity, s.Confidence, s.Strategy, metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to insert signal for %s: %w: %w", s.Symbol, ports.ErrUpdateFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for signal: %w", err)
	}
	rec.ID = id
	return id, nil
}

// ListSignals returns up to limit signals, newest first. limit <= 0 returns all.
func (r *Repository) ListSignals(ctx context.Context, portfolioID string, limit int) ([]*ports.SignalRecord, error) {
	const query = `
	SELECT id, portfolio_id, timestamp, symbol, signal_type, price, quantity, confidence, strategy, metadata
	FROM signals WHERE portfolio_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, portfolioID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for %s: %w: %w", portfolioID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make([]*ports.SignalRecord, 0)
	for rows.Next() {
		rec, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		out = append(out, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return out, nil
}

// --- Helpers ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var direction string
	var stopLoss, takeProfit sql.NullFloat64
	err := s.Scan(&p.ID, &p.Symbol, &p.Quantity, &p.EntryPrice, &p.CurrentPrice, &direction,
		&p.EntryTime, &stopLoss, &takeProfit)
	if err != nil {
		return nil, err
	}
	p.Direction = domain.Direction(direction)
	if stopLoss.Valid {
		p.StopLoss = domain.Float64Ptr(stopLoss.Float64)
	}
	if takeProfit.Valid {
		p.TakeProfit = domain.Float64Ptr(takeProfit.Float64)
	}
	return p, nil
}

func scanTrade(s scanner) (*domain.TradeRecord, error) {
	t := &domain.TradeRecord{}
	var action string
	if err := s.Scan(&t.ID, &t.Timestamp, &t.Symbol, &action, &t.Quantity, &t.Price, &t.Value); err != nil {
		return nil, err
	}
	t.Action = domain.TradeAction(action)
	return t, nil
}

func scanSignal(s scanner) (*ports.SignalRecord, error) {
	rec := &ports.SignalRecord{}
	var signalType string
	var metadata sql.NullString
	err := s.Scan(&rec.ID, &rec.PortfolioID, &rec.Timestamp, &rec.Signal.Symbol, &signalType,
		&rec.Signal.Price, &rec.Signal.Quantity, &rec.Signal.Confidence, &rec.Signal.Strategy, &metadata)
	if err != nil {
		return nil, err
	}
	rec.Signal.Type = domain.SignalType(signalType)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Signal.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode signal metadata: %w", err)
		}
	}
	return rec, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
