// Package memory is an in-process Store used by tests and local runs without Postgres.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
	xerrors "ledger-service/shared/utils/errors"
)

type data struct {
	accounts      map[string]*domain.Account
	accountSeq    int64
	trades        []*domain.Trade
	tradeSeq      int64
	funds         map[int64]*domain.FundRequest
	fundSeq       int64
	verifications map[int64]*domain.Verification
	verSeq        int64
}

func newData() *data {
	return &data{
		accounts:      make(map[string]*domain.Account),
		funds:         make(map[int64]*domain.FundRequest),
		verifications: make(map[int64]*domain.Verification),
	}
}

func (d *data) clone() *data {
	c := &data{
		accounts:      make(map[string]*domain.Account, len(d.accounts)),
		accountSeq:    d.accountSeq,
		trades:        make([]*domain.Trade, 0, len(d.trades)),
		tradeSeq:      d.tradeSeq,
		funds:         make(map[int64]*domain.FundRequest, len(d.funds)),
		fundSeq:       d.fundSeq,
		verifications: make(map[int64]*domain.Verification, len(d.verifications)),
		verSeq:        d.verSeq,
	}
	for k, v := range d.accounts {
		cp := *v
		c.accounts[k] = &cp
	}
	for _, t := range d.trades {
		cp := *t
		c.trades = append(c.trades, &cp)
	}
	for k, v := range d.funds {
		cp := *v
		c.funds[k] = &cp
	}
	for k, v := range d.verifications {
		cp := *v
		c.verifications[k] = &cp
	}
	return c
}

// Store serializes every call on one mutex. InTx works on a copy and swaps it in on success.
type Store struct {
	mu   *sync.Mutex
	data *data
	inTx bool
	now  func() time.Time
}

func New() *Store {
	return &Store{
		mu:   &sync.Mutex{},
		data: newData(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) with(fn func(d *data) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	*s.data = *tx.data
	return nil
}

func (s *Store) Accounts() repository.AccountRepository           { return accounts{s} }
func (s *Store) Trades() repository.TradeRepository               { return trades{s} }
func (s *Store) FundRequests() repository.FundRequestRepository   { return funds{s} }
func (s *Store) Verifications() repository.VerificationRepository { return verifications{s} }
func (s *Store) Reports() repository.ReportRepository             { return reports{s} }

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ============================================================================
// ACCOUNTS
// ============================================================================

type accounts struct{ s *Store }

func (r accounts) Create(_ context.Context, username string) (*domain.Account, error) {
	var out *domain.Account
	err := r.s.with(func(d *data) error {
		if _, ok := d.accounts[username]; ok {
			return xerrors.ErrDuplicateAccount
		}
		d.accountSeq++
		now := r.s.now()
		a := &domain.Account{ID: d.accountSeq, Username: username, CreatedAt: now, UpdatedAt: now}
		d.accounts[username] = a
		cp := *a
		out = &cp
		return nil
	})
	return out, err
}

func (r accounts) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	var out *domain.Account
	err := r.s.with(func(d *data) error {
		a, ok := d.accounts[username]
		if !ok {
			return xerrors.ErrNotFound
		}
		cp := *a
		out = &cp
		return nil
	})
	return out, err
}

func (r accounts) AdjustBalance(_ context.Context, username string, delta float64) (*domain.Account, error) {
	var out *domain.Account
	err := r.s.with(func(d *data) error {
		a, ok := d.accounts[username]
		if !ok {
			return xerrors.ErrNotFound
		}
		next := a.Balance + delta
		if math.IsInf(next, 0) || math.IsNaN(next) {
			return fmt.Errorf("%w: balance out of range", xerrors.ErrInvalidAmount)
		}
		a.Balance = next
		a.UpdatedAt = r.s.now()
		cp := *a
		out = &cp
		return nil
	})
	return out, err
}

func (r accounts) List(_ context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	var out []*domain.Account
	err := r.s.with(func(d *data) error {
		all := make([]*domain.Account, 0, len(d.accounts))
		for _, a := range d.accounts {
			cp := *a
			all = append(all, &cp)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
		out = page(all, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

// ============================================================================
// TRADES
// ============================================================================

type trades struct{ s *Store }

func (r trades) Create(_ context.Context, t *domain.Trade) error {
	return r.s.with(func(d *data) error {
		d.tradeSeq++
		t.ID = d.tradeSeq
		t.CreatedAt = r.s.now()
		cp := *t
		d.trades = append(d.trades, &cp)
		return nil
	})
}

func (r trades) List(_ context.Context, filter domain.TradeFilter) ([]*domain.Trade, error) {
	var out []*domain.Trade
	err := r.s.with(func(d *data) error {
		var matched []*domain.Trade
		for i := len(d.trades) - 1; i >= 0; i-- {
			t := d.trades[i]
			if filter.Username != "" && t.Username != filter.Username {
				continue
			}
			cp := *t
			matched = append(matched, &cp)
		}
		out = page(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

// ============================================================================
// FUND REQUESTS
// ============================================================================

type funds struct{ s *Store }

func (r funds) Create(_ context.Context, fr *domain.FundRequest) error {
	return r.s.with(func(d *data) error {
		if fr.Status == "" {
			fr.Status = domain.StatusPending
		}
		d.fundSeq++
		now := r.s.now()
		fr.ID, fr.CreatedAt, fr.UpdatedAt = d.fundSeq, now, now
		cp := *fr
		d.funds[fr.ID] = &cp
		return nil
	})
}

func (r funds) GetForUpdate(_ context.Context, kind domain.FundKind, id int64) (*domain.FundRequest, error) {
	var out *domain.FundRequest
	err := r.s.with(func(d *data) error {
		fr, ok := d.funds[id]
		if !ok || fr.Kind != kind {
			return xerrors.ErrNotFound
		}
		cp := *fr
		out = &cp
		return nil
	})
	return out, err
}

func (r funds) UpdateStatus(_ context.Context, id int64, from, to domain.Status) error {
	return r.s.with(func(d *data) error {
		fr, ok := d.funds[id]
		if !ok || fr.Status != from {
			return xerrors.ErrAlreadyFinalized
		}
		fr.Status = to
		fr.UpdatedAt = r.s.now()
		return nil
	})
}

func (r funds) List(_ context.Context, filter domain.FundRequestFilter) ([]*domain.FundRequest, error) {
	var out []*domain.FundRequest
	err := r.s.with(func(d *data) error {
		var matched []*domain.FundRequest
		for _, fr := range d.funds {
			if filter.Kind != "" && fr.Kind != filter.Kind {
				continue
			}
			if filter.Username != "" && fr.Username != filter.Username {
				continue
			}
			if filter.Status != "" && fr.Status != filter.Status {
				continue
			}
			cp := *fr
			matched = append(matched, &cp)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
		out = page(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

// ============================================================================
// VERIFICATIONS
// ============================================================================

type verifications struct{ s *Store }

func (r verifications) Create(_ context.Context, v *domain.Verification) error {
	return r.s.with(func(d *data) error {
		if v.Status == "" {
			v.Status = domain.StatusPending
		}
		d.verSeq++
		now := r.s.now()
		v.ID, v.CreatedAt, v.UpdatedAt = d.verSeq, now, now
		cp := *v
		d.verifications[v.ID] = &cp
		return nil
	})
}

func (r verifications) GetForUpdate(_ context.Context, id int64) (*domain.Verification, error) {
	var out *domain.Verification
	err := r.s.with(func(d *data) error {
		v, ok := d.verifications[id]
		if !ok {
			return xerrors.ErrNotFound
		}
		cp := *v
		out = &cp
		return nil
	})
	return out, err
}

func (r verifications) UpdateStatus(_ context.Context, id int64, from, to domain.Status) error {
	return r.s.with(func(d *data) error {
		v, ok := d.verifications[id]
		if !ok || v.Status != from {
			return xerrors.ErrAlreadyFinalized
		}
		v.Status = to
		v.UpdatedAt = r.s.now()
		return nil
	})
}

func (r verifications) Latest(_ context.Context, username string, kind domain.VerificationKind) (*domain.Verification, error) {
	var out *domain.Verification
	err := r.s.with(func(d *data) error {
		var best *domain.Verification
		for _, v := range d.verifications {
			if v.Username != username || v.Kind != kind {
				continue
			}
			if best == nil || v.CreatedAt.After(best.CreatedAt) ||
				(v.CreatedAt.Equal(best.CreatedAt) && v.ID > best.ID) {
				best = v
			}
		}
		if best == nil {
			return xerrors.ErrNotFound
		}
		cp := *best
		out = &cp
		return nil
	})
	return out, err
}

func (r verifications) List(_ context.Context, filter domain.VerificationFilter) ([]*domain.Verification, error) {
	var out []*domain.Verification
	err := r.s.with(func(d *data) error {
		var matched []*domain.Verification
		for _, v := range d.verifications {
			if filter.Kind != "" && v.Kind != filter.Kind {
				continue
			}
			if filter.Username != "" && v.Username != filter.Username {
				continue
			}
			if filter.Status != "" && v.Status != filter.Status {
				continue
			}
			cp := *v
			matched = append(matched, &cp)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
		out = page(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

// ============================================================================
// REPORTS
// ============================================================================

type reports struct{ s *Store }

func day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (r reports) Summary(_ context.Context, from, to time.Time) (*domain.Summary, error) {
	out := &domain.Summary{From: from, To: to}
	err := r.s.with(func(d *data) error {
		fundIdx := map[string]int{}
		for _, fr := range d.funds {
			if !inRange(fr.CreatedAt, from, to) {
				continue
			}
			key := strings.Join([]string{day(fr.CreatedAt).String(), string(fr.Kind), string(fr.Status)}, "|")
			i, ok := fundIdx[key]
			if !ok {
				out.FundRequests = append(out.FundRequests, domain.FundRequestStat{Day: day(fr.CreatedAt), Kind: fr.Kind, Status: fr.Status})
				i = len(out.FundRequests) - 1
				fundIdx[key] = i
			}
			out.FundRequests[i].Count++
			out.FundRequests[i].Total += fr.Amount
		}

		verIdx := map[string]int{}
		for _, v := range d.verifications {
			if !inRange(v.CreatedAt, from, to) {
				continue
			}
			key := strings.Join([]string{day(v.CreatedAt).String(), string(v.Kind), string(v.Status)}, "|")
			i, ok := verIdx[key]
			if !ok {
				out.Verifications = append(out.Verifications, domain.VerificationStat{Day: day(v.CreatedAt), Kind: v.Kind, Status: v.Status})
				i = len(out.Verifications) - 1
				verIdx[key] = i
			}
			out.Verifications[i].Count++
		}

		tradeIdx := map[time.Time]int{}
		for _, t := range d.trades {
			if !inRange(t.CreatedAt, from, to) {
				continue
			}
			dd := day(t.CreatedAt)
			i, ok := tradeIdx[dd]
			if !ok {
				out.Trades = append(out.Trades, domain.TradeStat{Day: dd})
				i = len(out.Trades) - 1
				tradeIdx[dd] = i
			}
			st := &out.Trades[i]
			st.Trades++
			if t.Result == domain.TradeWin {
				st.Wins++
			} else {
				st.Losses++
			}
			st.TotalProfit += t.Profit
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out.FundRequests, func(i, j int) bool {
		a, b := out.FundRequests[i], out.FundRequests[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Status < b.Status
	})
	sort.Slice(out.Verifications, func(i, j int) bool {
		a, b := out.Verifications[i], out.Verifications[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Status < b.Status
	})
	sort.Slice(out.Trades, func(i, j int) bool { return out.Trades[i].Day.Before(out.Trades[j].Day) })
	return out, nil
}
