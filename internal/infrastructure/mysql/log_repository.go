package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"live-auction/internal/domain"

	"github.com/shopspring/decimal"
)

// MySQLLogRepository is the append-only audit trail. Rows are never updated.
type MySQLLogRepository struct {
	db *sql.DB
}

func NewMySQLLogRepository(db *sql.DB) *MySQLLogRepository {
	return &MySQLLogRepository{db: db}
}

func (r *MySQLLogRepository) AppendLogEntry(ctx context.Context, entry *domain.LogEntry) error {
	query := `
        INSERT INTO auction_logs (auction_id, log_type, bid, bidder, note, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	var bid decimal.NullDecimal
	if entry.Bid != nil {
		bid = decimal.NewNullDecimal(*entry.Bid)
	}

	result, err := r.db.ExecContext(ctx, query,
		entry.AuctionID, string(entry.Type), bid, nullString(entry.Bidder),
		entry.Note, entry.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("mysql: append %s log for %s: %w", entry.Type, entry.AuctionID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

func (r *MySQLLogRepository) ListLogEntries(ctx context.Context, auctionID string) ([]*domain.LogEntry, error) {
	query := `
        SELECT id, auction_id, log_type, bid, bidder, note, created_at
        FROM auction_logs
        WHERE auction_id = ?
        ORDER BY id ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("mysql: list logs for %s: %w", auctionID, err)
	}
	defer rows.Close()

	var entries []*domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		var logType string
		var bid decimal.NullDecimal
		var bidder sql.NullString

		err := rows.Scan(&entry.ID, &entry.AuctionID, &logType, &bid, &bidder, &entry.Note, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("mysql: scan log entry: %w", err)
		}

		entry.Type = domain.LogType(logType)
		if bid.Valid {
			amount := bid.Decimal
			entry.Bid = &amount
		}
		if bidder.Valid {
			name := bidder.String
			entry.Bidder = &name
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: list logs for %s: %w", auctionID, err)
	}
	return entries, nil
}
