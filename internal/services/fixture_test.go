package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/memory"
	rediscache "live-auction/internal/infrastructure/redis"
	"live-auction/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

type recordingSender struct {
	mu      sync.Mutex
	events  map[string][]domain.Event
	failing map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{events: make(map[string][]domain.Event), failing: make(map[string]bool)}
}

func (s *recordingSender) Send(sessionID string, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[sessionID] {
		return errInjected
	}
	s.events[sessionID] = append(s.events[sessionID], event)
	return nil
}

func (s *recordingSender) fail(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[sessionID] = true
}

func (s *recordingSender) named(sessionID, name string) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, event := range s.events[sessionID] {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out
}

func (s *recordingSender) last(sessionID, name string) (domain.Event, bool) {
	events := s.named(sessionID, name)
	if len(events) == 0 {
		return domain.Event{}, false
	}
	return events[len(events)-1], true
}

// flakyStore fails UpdateAuction while updateErr is set and GetAuction while
// getErr is set.
type flakyStore struct {
	*memory.Store
	mu        sync.Mutex
	updateErr error
	getErr    error
	gets      int
}

func (s *flakyStore) setGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

func (s *flakyStore) getCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *flakyStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.Lock()
	s.gets++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.GetAuction(ctx, auctionID)
}

func (s *flakyStore) setUpdateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

func (s *flakyStore) UpdateAuction(ctx context.Context, auctionID string, update domain.AuctionUpdate) error {
	s.mu.Lock()
	err := s.updateErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.UpdateAuction(ctx, auctionID, update)
}

// flakyCache lets a test fail or intercept compare-and-set calls.
type flakyCache struct {
	domain.BidStateCache
	mu         sync.Mutex
	casErr     error
	beforeCAS  func()
	casResults []bool
}

func (c *flakyCache) CompareAndSet(ctx context.Context, auctionID string, expected, next domain.BidState) (bool, error) {
	c.mu.Lock()
	err := c.casErr
	hook := c.beforeCAS
	c.beforeCAS = nil
	var forced *bool
	if len(c.casResults) > 0 {
		forced = &c.casResults[0]
		c.casResults = c.casResults[1:]
	}
	c.mu.Unlock()

	if err != nil {
		return false, err
	}
	if hook != nil {
		hook()
	}
	if forced != nil && !*forced {
		return false, nil
	}
	return c.BidStateCache.CompareAndSet(ctx, auctionID, expected, next)
}

type fixture struct {
	engine *AuctionEngine
	sender *recordingSender
	store  *flakyStore
	cache  *flakyCache
	redis  *miniredis.Miniredis
}

func newFixture(t *testing.T, configure ...func(*EngineConfig)) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := EngineConfig{
		GracePeriod:         20 * time.Millisecond,
		CASMaxRetries:       5,
		StartRetryDelay:     20 * time.Millisecond,
		BidStateTTL:         time.Hour,
		AllowSelfRaise:      true,
		StoreRetryInterval:  time.Hour,
		StoreRetryMaxWindow: time.Minute,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	f := &fixture{
		sender: newRecordingSender(),
		store:  &flakyStore{Store: memory.NewStore()},
		cache:  &flakyCache{BidStateCache: rediscache.NewRedisBidCache(client)},
		redis:  mr,
	}
	f.engine = NewAuctionEngine(f.store, f.cache, f.sender, cfg, logger.NewNop())
	t.Cleanup(func() { f.engine.Stop(context.Background()) })
	return f
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// liveAuction creates and accepts an auction that starts almost immediately
// and waits until its room is live.
func (f *fixture) liveAuction(t *testing.T, seller string, startBid, increment int64) *domain.Auction {
	t.Helper()
	auction := f.acceptedAuction(t, seller, startBid, increment, 20*time.Millisecond)
	require.Eventually(t, func() bool { return f.engine.Rooms.IsLive(auction.ID) }, 2*time.Second, 5*time.Millisecond)
	return auction
}

func (f *fixture) acceptedAuction(t *testing.T, seller string, startBid, increment int64, startsIn time.Duration) *domain.Auction {
	t.Helper()
	ctx := context.Background()
	auction, err := f.engine.Lifecycle.CreateAuction(ctx, domain.NewAuction{
		Item:            "Brass lamp",
		Description:     "early 1900s",
		StartBid:        money(startBid),
		BidIncrement:    money(increment),
		StartDate:       time.Now().Add(startsIn),
		DurationMinutes: 1,
		Seller:          seller,
	})
	require.NoError(t, err)
	_, err = f.engine.Lifecycle.AcceptAuction(ctx, auction.ID)
	require.NoError(t, err)
	return auction
}

func (f *fixture) join(t *testing.T, sessionID, auctionID, userID string) {
	t.Helper()
	require.NoError(t, f.engine.Join(context.Background(), sessionID, auctionID, userID))
}

func (f *fixture) logsOfType(t *testing.T, auctionID string, logType domain.LogType) int {
	t.Helper()
	entries, err := f.store.ListLogEntries(context.Background(), auctionID)
	require.NoError(t, err)
	n := 0
	for _, entry := range entries {
		if entry.Type == logType {
			n++
		}
	}
	return n
}

// endNow replaces the pending end timer with one that fires immediately.
func (f *fixture) endNow(t *testing.T, auctionID string) {
	t.Helper()
	f.engine.Scheduler.Schedule(auctionID, time.Now(), domain.JobEnd)
	require.Eventually(t, func() bool {
		auction, err := f.store.GetAuction(context.Background(), auctionID)
		return err == nil && auction.Status == domain.AuctionEnded
	}, 2*time.Second, 5*time.Millisecond)
	// wait for the end handler to release the room
	f.engine.Locker.Lock(auctionID)()
}
