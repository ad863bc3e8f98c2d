package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"live-auction/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAuctionEngine_BidAndEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auction := f.acceptedAuction(t, "seller", 100, 10, 30*time.Millisecond)
	f.join(t, "s-alice", auction.ID, "alice")
	f.join(t, "s-bob", auction.ID, "bob")

	require.Eventually(t, func() bool {
		return len(f.sender.named("s-alice", domain.EventAuctionStarted)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	state, err := f.cache.Get(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, state.Bid.Equal(money(100)))
	require.False(t, state.HasBidder())

	result, err := f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(120))
	require.NoError(t, err)
	require.Equal(t, "alice", result.Bidder)

	for _, session := range []string{"s-alice", "s-bob"} {
		event, ok := f.sender.last(session, domain.EventNewBid)
		require.True(t, ok, session)
		payload := event.Payload.(NewBidPayload)
		require.Equal(t, 120.0, payload.Bid)
		require.Equal(t, "alice", payload.Bidder)
	}
	require.Len(t, f.sender.named("s-alice", domain.EventBidSuccess), 1)

	_, err = f.engine.PlaceBid(ctx, "s-bob", auction.ID, "bob", money(110))
	require.ErrorIs(t, err, domain.ErrBidTooLow)
	var bidErr *domain.BidError
	require.ErrorAs(t, err, &bidErr)
	require.True(t, bidErr.MinimumRequired.Equal(money(130)))

	event, ok := f.sender.last("s-bob", domain.EventBidError)
	require.True(t, ok)
	payload := event.Payload.(BidErrorPayload)
	require.Equal(t, "BID_TOO_LOW", payload.Code)
	require.Equal(t, 130.0, *payload.MinimumRequired)
	require.Equal(t, "alice", *payload.CurrentBidder)

	f.endNow(t, auction.ID)

	ended, ok := f.sender.last("s-bob", domain.EventAuctionEnded)
	require.True(t, ok)
	endPayload := ended.Payload.(AuctionEndedPayload)
	require.Equal(t, 120.0, endPayload.FinalBid)
	require.Equal(t, "alice", *endPayload.Winner)

	stored, err := f.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionEnded, stored.Status)
	require.True(t, stored.CurrentBid.Equal(money(120)))
	require.Equal(t, "alice", *stored.HighestBidder)

	// late bids lose to the end transition
	_, err = f.engine.PlaceBid(ctx, "s-bob", auction.ID, "bob", money(500))
	require.ErrorIs(t, err, domain.ErrAuctionNotLive)

	require.Eventually(t, func() bool {
		_, err := f.cache.Get(ctx, auction.ID)
		return errors.Is(err, domain.ErrBidStateNotFound) && f.engine.Members.MembersOf(auction.ID) == 0
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 1, f.logsOfType(t, auction.ID, domain.LogStart))
	require.Equal(t, 1, f.logsOfType(t, auction.ID, domain.LogBidding))
	require.Equal(t, 1, f.logsOfType(t, auction.ID, domain.LogEnd))
}

func TestAuctionEngine_SellerCannotJoin(t *testing.T) {
	f := newFixture(t)
	auction := f.liveAuction(t, "seller", 100, 10)

	err := f.engine.Join(context.Background(), "s-seller", auction.ID, "seller")
	require.ErrorIs(t, err, domain.ErrSellerCannotJoin)

	_, joined := f.engine.Members.AuctionOf("s-seller")
	require.False(t, joined)
	require.Zero(t, f.engine.Members.MembersOf(auction.ID))

	event, ok := f.sender.last("s-seller", domain.EventError)
	require.True(t, ok)
	require.Equal(t, "SELLER_CANNOT_JOIN", event.Payload.(ErrorPayload).Code)
}

func TestAuctionEngine_JoinSwitchesRooms(t *testing.T) {
	f := newFixture(t)
	first := f.liveAuction(t, "seller", 100, 10)
	second := f.liveAuction(t, "seller", 50, 5)

	f.join(t, "s-watch-1", first.ID, "watcher1")
	f.join(t, "s-watch-2", second.ID, "watcher2")
	f.join(t, "s-alice", first.ID, "alice")

	f.join(t, "s-alice", second.ID, "alice")

	auctionID, ok := f.engine.Members.AuctionOf("s-alice")
	require.True(t, ok)
	require.Equal(t, second.ID, auctionID)
	require.Equal(t, 1, f.engine.Members.MembersOf(first.ID))
	require.Equal(t, 2, f.engine.Members.MembersOf(second.ID))

	left, ok := f.sender.last("s-watch-1", domain.EventUserLeft)
	require.True(t, ok)
	require.Equal(t, first.ID, left.AuctionID)
	require.Equal(t, "alice", left.Payload.(PresencePayload).UserID)

	joined, ok := f.sender.last("s-watch-2", domain.EventUserJoined)
	require.True(t, ok)
	require.Equal(t, PresencePayload{UserID: "alice", ActiveUsers: 2}, joined.Payload)

	auth, ok := f.sender.last("s-alice", domain.EventAuthSuccess)
	require.True(t, ok)
	require.Equal(t, second.ID, auth.Payload.(AuthSuccessPayload).AuctionID)
	require.Equal(t, 50.0, auth.Payload.(AuthSuccessPayload).CurrentBid)

	// bidding in the room it left is refused
	_, err := f.engine.PlaceBid(context.Background(), "s-alice", first.ID, "alice", money(200))
	require.ErrorIs(t, err, domain.ErrNotJoined)
}

func TestAuctionEngine_FailedJoinKeepsCurrentRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	current := f.liveAuction(t, "seller", 100, 10)
	finished := f.liveAuction(t, "seller", 50, 5)
	f.endNow(t, finished.ID)

	f.join(t, "s-watch", current.ID, "watcher")
	f.join(t, "s-alice", current.ID, "alice")

	err := f.engine.Join(ctx, "s-alice", finished.ID, "alice")
	require.ErrorIs(t, err, domain.ErrAuctionNotLive)

	auctionID, ok := f.engine.Members.AuctionOf("s-alice")
	require.True(t, ok)
	require.Equal(t, current.ID, auctionID)
	require.Equal(t, 2, f.engine.Members.MembersOf(current.ID))
	require.Empty(t, f.sender.named("s-watch", domain.EventUserLeft))

	_, err = f.engine.PlaceBid(ctx, "s-alice", current.ID, "alice", money(110))
	require.NoError(t, err)
}

func TestAuctionEngine_BidRestoresLostBidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-alice", auction.ID, "alice")
	f.join(t, "s-bob", auction.ID, "bob")

	_, err := f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(120))
	require.NoError(t, err)

	f.redis.FlushAll()

	// the restored state still holds alice's bid
	_, err = f.engine.PlaceBid(ctx, "s-bob", auction.ID, "bob", money(110))
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	result, err := f.engine.PlaceBid(ctx, "s-bob", auction.ID, "bob", money(130))
	require.NoError(t, err)
	require.Equal(t, "bob", result.Bidder)

	state, err := f.cache.Get(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, state.Bid.Equal(money(130)))
}

func TestAuctionEngine_LeaveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-watch", auction.ID, "watcher")
	f.join(t, "s-alice", auction.ID, "alice")

	f.engine.Leave(context.Background(), "s-alice")
	f.engine.Leave(context.Background(), "s-alice")
	f.engine.Leave(context.Background(), "never-joined")

	require.Len(t, f.sender.named("s-watch", domain.EventUserLeft), 1)
	require.Equal(t, 1, f.engine.Members.MembersOf(auction.ID))
}

func TestAuctionEngine_DuplicateEndFiring(t *testing.T) {
	f := newFixture(t)
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-alice", auction.ID, "alice")

	handle := f.engine.Scheduler.Schedule(auction.ID, time.Now().Add(time.Hour), domain.JobEnd)
	f.engine.Lifecycle.HandleJob(handle)
	f.engine.Lifecycle.HandleJob(handle)

	// a retried timer with a fresh handle re-reads the status and does nothing
	retry := f.engine.Scheduler.Schedule(auction.ID, time.Now().Add(time.Hour), domain.JobEnd)
	f.engine.Lifecycle.HandleJob(retry)

	require.Equal(t, 1, f.logsOfType(t, auction.ID, domain.LogEnd))
	require.Len(t, f.sender.named("s-alice", domain.EventAuctionEnded), 1)

	err := f.engine.Lifecycle.EndAuction(context.Background(), auction.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.Equal(t, 1, f.logsOfType(t, auction.ID, domain.LogEnd))
}

func TestAuctionEngine_ConcurrentBidsCommitInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-watch", auction.ID, "watcher")

	const bidders = 12
	for i := 0; i < bidders; i++ {
		f.join(t, fmt.Sprintf("s-%d", i), auction.ID, fmt.Sprintf("user-%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.PlaceBid(ctx, fmt.Sprintf("s-%d", i), auction.ID, fmt.Sprintf("user-%d", i), money(int64(101+i)))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, domain.ErrBidTooLow)
	}

	broadcasts := f.sender.named("s-watch", domain.EventNewBid)
	require.Len(t, broadcasts, accepted)
	for i := 1; i < len(broadcasts); i++ {
		prev := broadcasts[i-1].Payload.(NewBidPayload).Bid
		next := broadcasts[i].Payload.(NewBidPayload).Bid
		require.Greater(t, next, prev)
	}

	state, err := f.cache.Get(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, state.Bid.Equal(money(100+bidders)))
	require.Equal(t, fmt.Sprintf("user-%d", bidders-1), state.Bidder)
}

func TestAuctionEngine_ConcurrentEqualBidsSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)

	const bidders = 8
	for i := 0; i < bidders; i++ {
		f.join(t, fmt.Sprintf("s-%d", i), auction.ID, fmt.Sprintf("user-%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.PlaceBid(ctx, fmt.Sprintf("s-%d", i), auction.ID, fmt.Sprintf("user-%d", i), money(150))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		var bidErr *domain.BidError
		require.ErrorAs(t, err, &bidErr)
		require.ErrorIs(t, err, domain.ErrBidTooLow)
		require.True(t, bidErr.CurrentBid.Equal(money(150)))
	}
	require.Equal(t, 1, accepted)
}

func TestAuctionEngine_EqualBidAlwaysRejected(t *testing.T) {
	for _, increment := range []string{"0.01", "1", "1000"} {
		t.Run(increment, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			auction, err := f.engine.Lifecycle.CreateAuction(ctx, domain.NewAuction{
				Item:            "Chair",
				StartBid:        money(100),
				BidIncrement:    decimal.RequireFromString(increment),
				StartDate:       time.Now().Add(20 * time.Millisecond),
				DurationMinutes: 5,
				Seller:          "seller",
			})
			require.NoError(t, err)
			_, err = f.engine.Lifecycle.AcceptAuction(ctx, auction.ID)
			require.NoError(t, err)
			require.Eventually(t, func() bool { return f.engine.Rooms.IsLive(auction.ID) }, 2*time.Second, 5*time.Millisecond)

			f.join(t, "s-a", auction.ID, "alice")
			f.join(t, "s-b", auction.ID, "bob")

			_, err = f.engine.PlaceBid(ctx, "s-a", auction.ID, "alice", money(100))
			require.ErrorIs(t, err, domain.ErrBidTooLow)

			_, err = f.engine.PlaceBid(ctx, "s-a", auction.ID, "alice", decimal.RequireFromString("100.01"))
			require.NoError(t, err)
			_, err = f.engine.PlaceBid(ctx, "s-b", auction.ID, "bob", decimal.RequireFromString("100.01"))
			require.ErrorIs(t, err, domain.ErrBidTooLow)
		})
	}
}

func TestAuctionEngine_SelfRaise(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		auction := f.liveAuction(t, "seller", 50, 10)
		f.join(t, "s-x", auction.ID, "x")

		_, err := f.engine.PlaceBid(ctx, "s-x", auction.ID, "x", money(100))
		require.NoError(t, err)
		_, err = f.engine.PlaceBid(ctx, "s-x", auction.ID, "x", money(150))
		require.NoError(t, err)

		_, err = f.engine.PlaceBid(ctx, "s-x", auction.ID, "x", money(150))
		require.ErrorIs(t, err, domain.ErrBidTooLow)
		require.Equal(t, 2, f.logsOfType(t, auction.ID, domain.LogBidding))
	})

	t.Run("refused", func(t *testing.T) {
		f := newFixture(t, func(cfg *EngineConfig) { cfg.AllowSelfRaise = false })
		ctx := context.Background()
		auction := f.liveAuction(t, "seller", 50, 10)
		f.join(t, "s-x", auction.ID, "x")

		_, err := f.engine.PlaceBid(ctx, "s-x", auction.ID, "x", money(100))
		require.NoError(t, err)
		_, err = f.engine.PlaceBid(ctx, "s-x", auction.ID, "x", money(150))
		require.ErrorIs(t, err, domain.ErrAlreadyHighestBidder)

		event, ok := f.sender.last("s-x", domain.EventBidError)
		require.True(t, ok)
		require.Equal(t, "ALREADY_HIGHEST_BIDDER", event.Payload.(BidErrorPayload).Code)
		require.Nil(t, event.Payload.(BidErrorPayload).MinimumRequired)
	})
}

func TestAuctionEngine_BidPreconditionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.acceptedAuction(t, "seller", 100, 10, time.Hour)
	f.join(t, "s-early", pending.ID, "early")
	_, err := f.engine.PlaceBid(ctx, "s-early", pending.ID, "early", money(-5))
	require.ErrorIs(t, err, domain.ErrAuctionNotLive)

	auction := f.liveAuction(t, "seller", 100, 10)
	_, err = f.engine.PlaceBid(ctx, "s-stranger", auction.ID, "stranger", money(0))
	require.ErrorIs(t, err, domain.ErrNotJoined)

	f.join(t, "s-alice", auction.ID, "alice")
	_, err = f.engine.PlaceBid(ctx, "s-alice", auction.ID, "mallory", money(500))
	require.ErrorIs(t, err, domain.ErrNotJoined)

	_, err = f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(0))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(-10))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(90))
	require.ErrorIs(t, err, domain.ErrBidTooLow)
}

func TestAuctionEngine_CacheFailureAbortsBid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-alice", auction.ID, "alice")
	f.join(t, "s-watch", auction.ID, "watcher")

	f.cache.mu.Lock()
	f.cache.casErr = errInjected
	f.cache.mu.Unlock()

	_, err := f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(200))
	require.ErrorIs(t, err, domain.ErrInternal)
	require.Empty(t, f.sender.named("s-watch", domain.EventNewBid))
	require.Zero(t, f.logsOfType(t, auction.ID, domain.LogBidding))

	event, ok := f.sender.last("s-alice", domain.EventError)
	require.True(t, ok)
	require.Equal(t, "INTERNAL_ERROR", event.Payload.(ErrorPayload).Code)
	require.NotContains(t, event.Payload.(ErrorPayload).Message, "injected")
}

func TestAuctionEngine_CASConflictRetriesAgainstFreshState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-alice", auction.ID, "alice")

	// another writer commits 300 between alice's read and her compare-and-set
	f.cache.mu.Lock()
	f.cache.beforeCAS = func() {
		ok, err := f.cache.BidStateCache.CompareAndSet(ctx, auction.ID,
			domain.BidState{Bid: money(100)}, domain.BidState{Bid: money(300), Bidder: "remote"})
		require.NoError(t, err)
		require.True(t, ok)
	}
	f.cache.mu.Unlock()

	_, err := f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(200))
	var bidErr *domain.BidError
	require.ErrorAs(t, err, &bidErr)
	require.ErrorIs(t, err, domain.ErrBidTooLow)
	require.True(t, bidErr.CurrentBid.Equal(money(300)))
	require.Equal(t, "remote", bidErr.CurrentBidder)
	require.True(t, bidErr.MinimumRequired.Equal(money(310)))
}

func TestAuctionEngine_CASRetriesExhausted(t *testing.T) {
	f := newFixture(t, func(cfg *EngineConfig) { cfg.CASMaxRetries = 3 })
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-alice", auction.ID, "alice")

	f.cache.mu.Lock()
	f.cache.casResults = []bool{false, false, false}
	f.cache.mu.Unlock()

	_, err := f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(200))
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	state, err := f.cache.Get(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, state.Bid.Equal(money(100)))

	_, err = f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(200))
	require.NoError(t, err)
}

func TestAuctionEngine_StoreFailureDefersWrite(t *testing.T) {
	f := newFixture(t, func(cfg *EngineConfig) { cfg.StoreRetryMaxWindow = 10 * time.Millisecond })
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-alice", auction.ID, "alice")
	f.join(t, "s-watch", auction.ID, "watcher")

	f.store.setUpdateErr(errInjected)
	_, err := f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(140))
	require.NoError(t, err)
	require.Len(t, f.sender.named("s-watch", domain.EventNewBid), 1)
	require.Equal(t, 1, f.engine.Writer.Pending())

	stored, err := f.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, stored.CurrentBid.Equal(money(100)))

	// the engine's own view includes the queued write
	info, err := f.engine.RoomInfo(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, info.Auction.CurrentBid.Equal(money(140)))

	require.Eventually(t, func() bool { return f.engine.Health() != nil }, time.Second, 5*time.Millisecond)

	f.store.setUpdateErr(nil)
	f.engine.Writer.Flush(ctx)
	require.Zero(t, f.engine.Writer.Pending())
	require.NoError(t, f.engine.Health())

	stored, err = f.store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, stored.CurrentBid.Equal(money(140)))
	require.Equal(t, "alice", *stored.HighestBidder)
}

func TestAuctionEngine_FailedDeliveryDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-alice", auction.ID, "alice")
	f.join(t, "s-broken", auction.ID, "broken")
	f.join(t, "s-watch", auction.ID, "watcher")
	f.sender.fail("s-broken")

	_, err := f.engine.PlaceBid(context.Background(), "s-alice", auction.ID, "alice", money(101))
	require.NoError(t, err)
	require.Len(t, f.sender.named("s-watch", domain.EventNewBid), 1)
	require.Len(t, f.sender.named("s-alice", domain.EventNewBid), 1)
}

func TestAuctionEngine_RoomInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-alice", auction.ID, "alice")

	_, err := f.engine.PlaceBid(ctx, "s-alice", auction.ID, "alice", money(125))
	require.NoError(t, err)

	require.NoError(t, f.engine.SendRoomInfo(ctx, "s-alice", auction.ID))
	event, ok := f.sender.last("s-alice", domain.EventRoomInfo)
	require.True(t, ok)
	payload := event.Payload.(RoomInfoPayload)
	require.Equal(t, 125.0, payload.CurrentBid)
	require.Equal(t, "alice", *payload.CurrentBidder)
	require.Equal(t, 1, payload.ActiveUsers)
	require.True(t, payload.Live)

	err = f.engine.SendRoomInfo(ctx, "s-alice", "missing")
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
	errEvent, ok := f.sender.last("s-alice", domain.EventError)
	require.True(t, ok)
	require.Equal(t, "AUCTION_NOT_FOUND", errEvent.Payload.(ErrorPayload).Code)
}

func TestAuctionEngine_JoinRejectsFinishedAuctions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auction := f.liveAuction(t, "seller", 100, 10)
	f.endNow(t, auction.ID)
	err := f.engine.Join(ctx, "s-late", auction.ID, "late")
	require.ErrorIs(t, err, domain.ErrAuctionNotLive)

	err = f.engine.Join(ctx, "s-late", "missing", "late")
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestAuctionEngine_CurrentBidNeverBelowStartBid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auction := f.liveAuction(t, "seller", 100, 10)
	f.join(t, "s-a", auction.ID, "a")

	for _, amount := range []int64{50, 100, 101, 99, 150} {
		_, _ = f.engine.PlaceBid(ctx, "s-a", auction.ID, "a", money(amount))
		stored, err := f.store.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		require.True(t, stored.CurrentBid.GreaterThanOrEqual(stored.StartBid))
		require.Equal(t, stored.CurrentBid.GreaterThan(stored.StartBid), stored.HighestBidder != nil)
	}
}
