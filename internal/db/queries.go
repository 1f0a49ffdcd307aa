// Package db persists accounts and transaction history to SQLite. The
// ledger is the source of truth at runtime; this layer is a write-behind
// store that survives restarts.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/johnprom/rust-trading-simulator/internal/ledger"
)

var ErrUserIDRequired = errors.New("user_id is required for data isolation")

// Queries provides account persistence bound to one database handle.
type Queries struct {
	db *sql.DB
}

// SaveAccount upserts a full account snapshot: user row, balances and any
// history entries not yet stored. Transactions are immutable, so existing
// rows are never rewritten.
func (q *Queries) SaveAccount(ctx context.Context, acc ledger.Account) error {
	if acc.UserID == "" {
		return ErrUserIDRequired
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save account: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			password_hash = excluded.password_hash,
			updated_at = CURRENT_TIMESTAMP
	`, acc.UserID, acc.Username, acc.PasswordHash); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM balances WHERE user_id = ?`, acc.UserID); err != nil {
		return fmt.Errorf("clear balances: %w", err)
	}
	for asset, qty := range acc.Balances {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO balances (user_id, asset, quantity) VALUES (?, ?, ?)
		`, acc.UserID, asset, qty); err != nil {
			return fmt.Errorf("insert balance %s: %w", asset, err)
		}
	}

	for _, rec := range acc.History {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions
				(id, user_id, kind, base_asset, quote_asset, side, quantity, price,
				 timestamp, base_usd_price, quote_usd_price, executed_by_bot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.UserID, rec.Kind, rec.BaseAsset, rec.QuoteAsset, rec.Side,
			rec.Quantity, rec.Price, rec.Timestamp, rec.BaseUSDPrice, rec.QuoteUSDPrice,
			rec.ExecutedByBot); err != nil {
			return fmt.Errorf("insert transaction %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// LoadAccounts reads every stored account with its balances and history,
// ready to seed the ledger at startup.
func (q *Queries) LoadAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, username, password_hash FROM users`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var acc ledger.Account
		if err := rows.Scan(&acc.UserID, &acc.Username, &acc.PasswordHash); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range accounts {
		balances, err := q.loadBalances(ctx, accounts[i].UserID)
		if err != nil {
			return nil, err
		}
		accounts[i].Balances = balances

		history, err := q.TransactionsByUser(ctx, accounts[i].UserID, 0)
		if err != nil {
			return nil, err
		}
		accounts[i].History = history
	}
	return accounts, nil
}

func (q *Queries) loadBalances(ctx context.Context, userID string) (map[string]float64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT asset, quantity FROM balances WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]float64)
	for rows.Next() {
		var asset string
		var qty float64
		if err := rows.Scan(&asset, &qty); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances[asset] = qty
	}
	return balances, rows.Err()
}

// TransactionsByUser returns a user's history oldest first. limit <= 0
// means no limit.
func (q *Queries) TransactionsByUser(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	query := `
		SELECT id, user_id, kind, base_asset, quote_asset, side, quantity, price,
		       timestamp, base_usd_price, quote_usd_price, COALESCE(executed_by_bot, '')
		FROM transactions
		WHERE user_id = ?
		ORDER BY timestamp ASC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var rec ledger.Transaction
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Kind, &rec.BaseAsset, &rec.QuoteAsset,
			&rec.Side, &rec.Quantity, &rec.Price, &rec.Timestamp, &rec.BaseUSDPrice,
			&rec.QuoteUSDPrice, &rec.ExecutedByBot); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteUser removes an account and all of its rows. Used when the demo
// user is reset at startup.
func (q *Queries) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM transactions WHERE user_id = ?`,
		`DELETE FROM balances WHERE user_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return fmt.Errorf("delete user rows: %w", err)
		}
	}
	return tx.Commit()
}
