package services

import (
	"strings"
	"time"

	"live-auction/internal/domain"

	"github.com/shopspring/decimal"
)

func validateNewAuction(in domain.NewAuction, now time.Time) error {
	if strings.TrimSpace(in.Item) == "" {
		return domain.NewValidationError("item", "is required")
	}
	if strings.TrimSpace(in.Seller) == "" {
		return domain.NewValidationError("seller", "is required")
	}
	if in.StartBid.IsNegative() {
		return domain.NewValidationError("startBid", "must not be negative")
	}
	if !in.BidIncrement.IsPositive() {
		return domain.NewValidationError("bidIncrement", "must be positive")
	}
	if in.DurationMinutes <= 0 {
		return domain.NewValidationError("durationMinutes", "must be positive")
	}
	if !in.StartDate.After(now) {
		return domain.NewValidationError("startDate", "must be in the future")
	}
	return nil
}

func validateChanges(changes domain.AuctionChanges, now time.Time) error {
	if changes.Item != nil && strings.TrimSpace(*changes.Item) == "" {
		return domain.NewValidationError("item", "must not be empty")
	}
	if changes.DurationMinutes != nil && *changes.DurationMinutes <= 0 {
		return domain.NewValidationError("durationMinutes", "must be positive")
	}
	if changes.StartDate != nil && !changes.StartDate.After(now) {
		return domain.NewValidationError("startDate", "must be in the future")
	}
	return nil
}

// minimumRequired is the smallest amount worth suggesting to a bidder.
// Acceptance itself only needs a bid strictly above current.
func minimumRequired(current, increment decimal.Decimal) decimal.Decimal {
	return current.Add(increment)
}
