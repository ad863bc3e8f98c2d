package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"live-auction/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const (
	fieldCurrentBid  = "current_bid"
	fieldWinnerID    = "winner_id"
	fieldLastUpdated = "last_updated"
)

// compareAndSetScript returns -1 when the hash is missing, 0 when the stored
// bid or winner differs from the expected pair and 1 after writing.
var compareAndSetScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'current_bid', 'winner_id')
if cur[1] == false then
    return -1
end
local winner = cur[2]
if winner == false then
    winner = ''
end
if cur[1] ~= ARGV[1] or winner ~= ARGV[2] then
    return 0
end
redis.call('HSET', KEYS[1], 'current_bid', ARGV[3], 'winner_id', ARGV[4], 'last_updated', ARGV[5])
return 1
`)

var initializeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
redis.call('HSET', KEYS[1], 'current_bid', ARGV[1], 'winner_id', ARGV[2], 'last_updated', ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
    redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// RedisBidCache keeps one hash per live auction. Amounts are stored in their
// canonical decimal form so the Lua comparison can work on strings.
type RedisBidCache struct {
	client *redis.Client
}

func NewRedisBidCache(client *redis.Client) *RedisBidCache {
	return &RedisBidCache{client: client}
}

func bidStateKey(auctionID string) string {
	return fmt.Sprintf("auction:%s", auctionID)
}

func (r *RedisBidCache) Get(ctx context.Context, auctionID string) (domain.BidState, error) {
	values, err := r.client.HGetAll(ctx, bidStateKey(auctionID)).Result()
	if err != nil {
		return domain.BidState{}, fmt.Errorf("redis: get bid state %s: %w", auctionID, err)
	}
	raw, ok := values[fieldCurrentBid]
	if !ok {
		return domain.BidState{}, domain.ErrBidStateNotFound
	}

	bid, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.BidState{}, fmt.Errorf("redis: corrupt bid %q for %s: %w", raw, auctionID, err)
	}
	return domain.BidState{Bid: bid, Bidder: values[fieldWinnerID]}, nil
}

func (r *RedisBidCache) CompareAndSet(ctx context.Context, auctionID string, expected, next domain.BidState) (bool, error) {
	result, err := compareAndSetScript.Run(ctx, r.client, []string{bidStateKey(auctionID)},
		expected.Bid.String(),
		expected.Bidder,
		next.Bid.String(),
		next.Bidder,
		strconv.FormatInt(time.Now().UnixMilli(), 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: compare and set %s: %w", auctionID, err)
	}

	switch result {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, domain.ErrBidStateNotFound
	}
}

func (r *RedisBidCache) Initialize(ctx context.Context, auctionID string, initial domain.BidState, ttl time.Duration) (bool, error) {
	result, err := initializeScript.Run(ctx, r.client, []string{bidStateKey(auctionID)},
		initial.Bid.String(),
		initial.Bidder,
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: initialize bid state %s: %w", auctionID, err)
	}
	return result == 1, nil
}

func (r *RedisBidCache) Delete(ctx context.Context, auctionID string) error {
	if err := r.client.Del(ctx, bidStateKey(auctionID)).Err(); err != nil {
		return fmt.Errorf("redis: delete bid state %s: %w", auctionID, err)
	}
	return nil
}
