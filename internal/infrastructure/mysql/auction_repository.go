package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"live-auction/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

const auctionColumns = `id, item, description, start_bid, bid_increment, start_date, duration_minutes,
        status, current_bid, highest_bidder, seller, created_at, updated_at`

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.Item, auction.Description,
		auction.StartBid, auction.BidIncrement, auction.StartDate.UTC(), auction.DurationMinutes,
		string(auction.Status), auction.CurrentBid, nullString(auction.HighestBidder), auction.Seller,
		auction.CreatedAt.UTC(), auction.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("mysql: insert auction %s: %w", auction.ID, err)
	}
	return nil
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// UpdateAuction writes only the fields set in update. The DSN is expected to
// carry clientFoundRows=true so an unchanged row still counts as found.
func (r *MySQLAuctionRepository) UpdateAuction(ctx context.Context, auctionID string, update domain.AuctionUpdate) error {
	var sets []string
	var args []interface{}

	if update.Item != nil {
		sets = append(sets, "item = ?")
		args = append(args, *update.Item)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.StartDate != nil {
		sets = append(sets, "start_date = ?")
		args = append(args, update.StartDate.UTC())
	}
	if update.DurationMinutes != nil {
		sets = append(sets, "duration_minutes = ?")
		args = append(args, *update.DurationMinutes)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.CurrentBid != nil {
		sets = append(sets, "current_bid = ?")
		args = append(args, *update.CurrentBid)
	}
	if update.ClearHighestBidder {
		sets = append(sets, "highest_bidder = NULL")
	} else if update.HighestBidder != nil {
		sets = append(sets, "highest_bidder = ?")
		args = append(args, *update.HighestBidder)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), auctionID)

	query := `UPDATE auctions SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mysql: update auction %s: %w", auctionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mysql: update auction %s: %w", auctionID, err)
	}
	if affected == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

func (r *MySQLAuctionRepository) DeleteAuction(ctx context.Context, auctionID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM auctions WHERE id = ?`, auctionID)
	if err != nil {
		return fmt.Errorf("mysql: delete auction %s: %w", auctionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mysql: delete auction %s: %w", auctionID, err)
	}
	if affected == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

// ListAuctions returns every auction when no status is given.
func (r *MySQLAuctionRepository) ListAuctions(ctx context.Context, statuses ...domain.AuctionStatus) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	args := make([]interface{}, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY start_date ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("mysql: scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: list auctions: %w", err)
	}
	return auctions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status string
	var highestBidder sql.NullString

	err := row.Scan(
		&auction.ID, &auction.Item, &auction.Description,
		&auction.StartBid, &auction.BidIncrement, &auction.StartDate, &auction.DurationMinutes,
		&status, &auction.CurrentBid, &highestBidder, &auction.Seller,
		&auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	if highestBidder.Valid {
		bidder := highestBidder.String
		auction.HighestBidder = &bidder
	}
	return &auction, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
