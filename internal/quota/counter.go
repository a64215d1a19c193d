package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
)

const dailyWindow = 24 * time.Hour

// Key scheme. Daily counters carry a KV-native TTL establishing the sliding
// 24h window; monthly counters are calendar-aligned and never expire.
func dailyKey(o owner.Owner) string {
	return fmt.Sprintf("ai:usage:%s:%s", o.Type, o.ID)
}

func monthlyKey(o owner.Owner, now time.Time) string {
	return fmt.Sprintf("ai:usage:month:%s:%s:%s", o.Type, o.ID, now.UTC().Format("200601"))
}

func creditsKey(userID string) string {
	return fmt.Sprintf("ai:credits:user:%s", userID)
}

// reserveDailyScript atomically admits and debits one daily unit. Check and
// increment happen in one round trip so concurrent requests cannot both
// pass an exhausted window.
var reserveDailyScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if used >= limit then
	return {used, 0}
end
used = redis.call('INCR', KEYS[1])
if used == 1 then
	redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[2]))
end
return {used, 1}
`)

// releaseDailyScript undoes a reservation without letting the counter go
// negative.
var releaseDailyScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used <= 0 then
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// spendCreditScript decrements one credit, refusing to go below zero.
// Returns the new balance, or -1 when no credit was available.
var spendCreditScript = redis.NewScript(`
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
if bal <= 0 then
	return -1
end
return redis.call('DECR', KEYS[1])
`)

// Window is one quota window's state as reported to callers.
type Window struct {
	Used    int        `json:"used"`
	Limit   int        `json:"limit"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

// CounterStore is the atomic counter abstraction over Redis.
type CounterStore struct {
	rdb redis.Cmdable
}

func NewCounterStore(rdb redis.Cmdable) *CounterStore {
	return &CounterStore{rdb: rdb}
}

// ReserveDaily admits and debits one unit of the owner's daily window.
// It returns the counter value after the call and whether admission
// succeeded.
func (s *CounterStore) ReserveDaily(ctx context.Context, o owner.Owner, limit int) (int, bool, error) {
	res, err := reserveDailyScript.Run(ctx, s.rdb, []string{dailyKey(o)}, limit, dailyWindow.Milliseconds()).Slice()
	if err != nil {
		return 0, false, fmt.Errorf("reserving daily quota: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("reserving daily quota: unexpected reply %v", res)
	}
	used := int(res[0].(int64))
	admitted := res[1].(int64) == 1
	return used, admitted, nil
}

// ReleaseDaily returns a reserved unit after a failed unit of work.
func (s *CounterStore) ReleaseDaily(ctx context.Context, o owner.Owner) error {
	if err := releaseDailyScript.Run(ctx, s.rdb, []string{dailyKey(o)}).Err(); err != nil {
		return fmt.Errorf("releasing daily quota: %w", err)
	}
	return nil
}

// DailyUsage reads the daily counter and derives resetAt from the key TTL.
func (s *CounterStore) DailyUsage(ctx context.Context, o owner.Owner) (int, *time.Time, error) {
	key := dailyKey(o)

	used, err := s.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("reading daily usage: %w", err)
	}

	ttl, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("reading daily ttl: %w", err)
	}
	if ttl <= 0 {
		return used, nil, nil
	}
	resetAt := time.Now().Add(ttl)
	return used, &resetAt, nil
}

// MonthlyUsage reads the calendar-month counter.
func (s *CounterStore) MonthlyUsage(ctx context.Context, o owner.Owner, now time.Time) (int, error) {
	used, err := s.rdb.Get(ctx, monthlyKey(o, now)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading monthly usage: %w", err)
	}
	return used, nil
}

// IncrMonthly debits one unit of the owner's calendar-month window.
func (s *CounterStore) IncrMonthly(ctx context.Context, o owner.Owner, now time.Time) error {
	if err := s.rdb.Incr(ctx, monthlyKey(o, now)).Err(); err != nil {
		return fmt.Errorf("incrementing monthly quota: %w", err)
	}
	return nil
}

// Credits returns the owner's prepaid credit balance. Guests never hold
// credits.
func (s *CounterStore) Credits(ctx context.Context, o owner.Owner) (int, error) {
	if !o.IsUser() {
		return 0, nil
	}
	bal, err := s.rdb.Get(ctx, creditsKey(o.ID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading credit balance: %w", err)
	}
	return bal, nil
}

// SpendCredit consumes one credit. Returns false when the balance was
// already zero.
func (s *CounterStore) SpendCredit(ctx context.Context, o owner.Owner) (bool, error) {
	if !o.IsUser() {
		return false, nil
	}
	bal, err := spendCreditScript.Run(ctx, s.rdb, []string{creditsKey(o.ID)}).Int()
	if err != nil {
		return false, fmt.Errorf("spending credit: %w", err)
	}
	return bal >= 0, nil
}

// AddCredits tops up a user's balance (purchase webhook, support grants).
func (s *CounterStore) AddCredits(ctx context.Context, o owner.Owner, n int) (int, error) {
	if !o.IsUser() {
		return 0, fmt.Errorf("credits: owner %s/%s cannot hold credits", o.Type, o.ID)
	}
	bal, err := s.rdb.IncrBy(ctx, creditsKey(o.ID), int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("adding credits: %w", err)
	}
	return int(bal), nil
}

// startOfNextMonth returns the first instant of the following calendar
// month in UTC, the monthly window's reset point.
func startOfNextMonth(now time.Time) time.Time {
	t := now.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
