package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/metrics"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
)

// Scope names the quota window that rejected a request.
type Scope string

const (
	ScopeDaily   Scope = "daily"
	ScopeMonthly Scope = "monthly"
)

// ExceededError reports an exhausted window together with the counters
// observed at admission time.
type ExceededError struct {
	Scope Scope
	Used  int
	Limit int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s limit reached (%d/%d)", e.Scope, e.Used, e.Limit)
}

// AsExceeded unwraps an ExceededError if err carries one.
func AsExceeded(err error) (*ExceededError, bool) {
	var qe *ExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// Reservation is a successful admission. The daily unit is already debited;
// Commit settles the monthly side (or a credit), Release undoes the daily
// debit after a failed unit of work.
type Reservation struct {
	Owner     owner.Owner
	Plan      Plan
	UseCredit bool
	DailyUsed int
}

// Status is the owner-facing usage report.
type Status struct {
	Plan    string `json:"plan"`
	Daily   Window `json:"daily"`
	Monthly Window `json:"monthly"`
	Credits int    `json:"credits"`
}

// Checker decides whether a unit of work may proceed and where it is
// debited: monthly window first (with prepaid-credit fallback for users),
// then the daily window as the authoritative gatekeeper.
type Checker struct {
	store *CounterStore
	now   func() time.Time
}

func NewChecker(store *CounterStore) *Checker {
	return &Checker{store: store, now: time.Now}
}

// Check admits one unit of work for the owner. On success the daily window
// is already debited and the returned reservation must be settled with
// Commit or Release.
func (c *Checker) Check(ctx context.Context, o owner.Owner) (*Reservation, error) {
	plan := PlanFor(o)
	now := c.now()

	// 1. Monthly window. A user with a positive credit balance may pass an
	// exhausted month; the credit is only spent on Commit.
	useCredit := false
	if plan.MonthlyLimit > 0 {
		used, err := c.store.MonthlyUsage(ctx, o, now)
		if err != nil {
			return nil, err
		}
		if used >= plan.MonthlyLimit {
			credits := 0
			if o.IsUser() {
				credits, err = c.store.Credits(ctx, o)
				if err != nil {
					return nil, err
				}
			}
			if credits <= 0 {
				metrics.QuotaRejectionsTotal.WithLabelValues(string(ScopeMonthly)).Inc()
				return nil, &ExceededError{Scope: ScopeMonthly, Used: min(used, plan.MonthlyLimit), Limit: plan.MonthlyLimit}
			}
			useCredit = true
		}
	}

	// 2. Daily window: atomic check-and-debit, authoritative even when a
	// credit was tentatively reserved above.
	used, admitted, err := c.store.ReserveDaily(ctx, o, plan.DailyLimit)
	if err != nil {
		return nil, err
	}
	if !admitted {
		metrics.QuotaRejectionsTotal.WithLabelValues(string(ScopeDaily)).Inc()
		return nil, &ExceededError{Scope: ScopeDaily, Used: min(used, plan.DailyLimit), Limit: plan.DailyLimit}
	}

	return &Reservation{Owner: o, Plan: plan, UseCredit: useCredit, DailyUsed: used}, nil
}

// Commit settles a reservation after the unit of work succeeded: one credit
// when the monthly window was exhausted, otherwise one monthly unit.
func (c *Checker) Commit(ctx context.Context, res *Reservation) error {
	if res.UseCredit {
		spent, err := c.store.SpendCredit(ctx, res.Owner)
		if err != nil {
			return err
		}
		if spent {
			return nil
		}
		// The balance raced to zero since admission; debit the month so the
		// unit of work is still accounted somewhere.
		slog.Warn("credit balance exhausted between admission and commit, debiting monthly window",
			"owner_type", res.Owner.Type, "owner_id", res.Owner.ID)
	}
	return c.store.IncrMonthly(ctx, res.Owner, c.now())
}

// Release returns the daily unit after a failed unit of work.
func (c *Checker) Release(ctx context.Context, res *Reservation) error {
	return c.store.ReleaseDaily(ctx, res.Owner)
}

// Usage reports the owner's current windows, limits, and credit balance.
func (c *Checker) Usage(ctx context.Context, o owner.Owner) (*Status, error) {
	plan := PlanFor(o)
	now := c.now()

	dailyUsed, dailyReset, err := c.store.DailyUsage(ctx, o)
	if err != nil {
		return nil, err
	}

	monthlyUsed, err := c.store.MonthlyUsage(ctx, o, now)
	if err != nil {
		return nil, err
	}
	monthlyReset := startOfNextMonth(now)

	credits, err := c.store.Credits(ctx, o)
	if err != nil {
		return nil, err
	}

	return &Status{
		Plan:    plan.Name,
		Daily:   Window{Used: dailyUsed, Limit: plan.DailyLimit, ResetAt: dailyReset},
		Monthly: Window{Used: monthlyUsed, Limit: plan.MonthlyLimit, ResetAt: &monthlyReset},
		Credits: credits,
	}, nil
}
