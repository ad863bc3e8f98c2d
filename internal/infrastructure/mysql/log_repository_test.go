package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"live-auction/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAppendLogEntry(t *testing.T) {
	store, mock := newMock(t)
	bid := decimal.NewFromInt(120)
	bidder := "alice"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auction_logs")).
		WithArgs("auc_1", "bidding", "120", "alice", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auction_logs")).
		WithArgs("auc_1", "start", nil, nil, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(8, 1))

	entry := &domain.LogEntry{AuctionID: "auc_1", Type: domain.LogBidding, Bid: &bid, Bidder: &bidder, Timestamp: time.Now()}
	require.NoError(t, store.AppendLogEntry(context.Background(), entry))
	require.Equal(t, int64(7), entry.ID)

	require.NoError(t, store.AppendLogEntry(context.Background(), &domain.LogEntry{
		AuctionID: "auc_1", Type: domain.LogStart, Timestamp: time.Now(),
	}))
}

func TestListLogEntries(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM auction_logs")).
		WithArgs("auc_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "auction_id", "log_type", "bid", "bidder", "note", "created_at"}).
			AddRow(1, "auc_1", "created", nil, nil, "", now).
			AddRow(2, "auc_1", "bidding", "120.00", "alice", "", now))

	entries, err := store.ListLogEntries(context.Background(), "auc_1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.LogCreated, entries[0].Type)
	require.Nil(t, entries[0].Bid)
	require.True(t, entries[1].Bid.Equal(decimal.NewFromInt(120)))
	require.Equal(t, "alice", *entries[1].Bidder)
}
