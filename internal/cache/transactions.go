package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/yakoovad/finflow/internal/model"
)

const (
	DefaultSize = 1024
	DefaultTTL  = 5 * time.Minute
)

// Transactions caches transaction list pages per team and filter.
// Stored pages are never mutated in place: every change swaps in a fresh copy,
// so a snapshot can be restored verbatim. Pages expire after the configured TTL
// so writes made by other processes become visible without an explicit invalidation.
type Transactions struct {
	mu    sync.Mutex
	pages *expirable.LRU[string, entry]
}

type entry struct {
	filter model.TransactionFilter
	page   *model.TransactionPage
}

// Snapshot holds the pages as they were before a Patch.
type Snapshot struct {
	pages map[string]entry
}

func (s Snapshot) Len() int {
	return len(s.pages)
}

func NewTransactions(size int, ttl time.Duration) *Transactions {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Transactions{pages: expirable.NewLRU[string, entry](size, nil, ttl)}
}

func teamPrefix(teamID string) string {
	return teamID + "|"
}

func key(teamID string, f model.TransactionFilter) string {
	var b strings.Builder
	b.WriteString(teamPrefix(teamID))
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s|", fmtDate(f.From), fmtDate(f.To), f.Status, f.Category, strings.ToLower(f.Search))
	if f.Recurring != nil {
		fmt.Fprintf(&b, "%t", *f.Recurring)
	}
	fmt.Fprintf(&b, "|%d|%d", f.Cursor, f.PageSize)
	return b.String()
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func (c *Transactions) Get(teamID string, f model.TransactionFilter) (*model.TransactionPage, bool) {
	e, ok := c.pages.Get(key(teamID, f))
	if !ok {
		return nil, false
	}
	return e.page, true
}

func (c *Transactions) Set(teamID string, f model.TransactionFilter, page *model.TransactionPage) {
	c.pages.Add(key(teamID, f), entry{filter: f, page: page})
}

// Patch applies fn to every cached row of the team whose id is in ids.
// A page is dropped when a patched row stops matching the filter it was listed under.
func (c *Transactions) Patch(teamID string, ids []string, fn func(*model.Transaction)) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := toSet(ids)
	snap := Snapshot{pages: make(map[string]entry)}

	for _, k := range c.teamKeys(teamID) {
		e, ok := c.pages.Peek(k)
		if !ok || !containsAny(e.page, want) {
			continue
		}

		next := clonePage(e.page)
		stale := false
		for _, t := range next.Data {
			if _, hit := want[t.ID]; !hit {
				continue
			}
			before := matches(e.filter, t)
			fn(t)
			if before && !matches(e.filter, t) {
				stale = true
			}
		}

		snap.pages[k] = e
		if stale {
			c.pages.Remove(k)
			continue
		}
		c.pages.Add(k, entry{filter: e.filter, page: next})
	}

	return snap
}

// Rollback restores the pages captured by s. Pages evicted or dropped since then stay gone.
func (c *Transactions) Rollback(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range s.pages {
		if c.pages.Contains(k) {
			c.pages.Add(k, e)
		}
	}
}

// Replace swaps the stored version of each row into every cached page that holds it.
func (c *Transactions) Replace(teamID string, rows ...*model.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := make(map[string]*model.Transaction, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	for _, k := range c.teamKeys(teamID) {
		e, ok := c.pages.Peek(k)
		if !ok {
			continue
		}

		changed, stale := false, false
		next := &model.TransactionPage{Data: make([]*model.Transaction, len(e.page.Data)), NextCursor: e.page.NextCursor}
		for i, t := range e.page.Data {
			r, hit := byID[t.ID]
			if !hit {
				next.Data[i] = t
				continue
			}
			if matches(e.filter, t) && !matches(e.filter, r) {
				stale = true
			}
			cp := *r
			next.Data[i] = &cp
			changed = true
		}

		switch {
		case stale:
			c.pages.Remove(k)
		case changed:
			c.pages.Add(k, entry{filter: e.filter, page: next})
		}
	}
}

// Invalidate drops every cached page of the team.
func (c *Transactions) Invalidate(teamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.teamKeys(teamID) {
		c.pages.Remove(k)
	}
}

func (c *Transactions) teamKeys(teamID string) []string {
	prefix := teamPrefix(teamID)
	var keys []string
	for _, k := range c.pages.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// matches mirrors the WHERE clause the repository builds for f.
func matches(f model.TransactionFilter, t *model.Transaction) bool {
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Date.After(*f.To) {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Recurring != nil && t.Recurring != *f.Recurring {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Name), q) && !strings.Contains(strings.ToLower(t.MerchantName), q) {
			return false
		}
	}
	return true
}

func clonePage(p *model.TransactionPage) *model.TransactionPage {
	out := &model.TransactionPage{Data: make([]*model.Transaction, len(p.Data)), NextCursor: p.NextCursor}
	for i, t := range p.Data {
		cp := *t
		out.Data[i] = &cp
	}
	return out
}

func containsAny(p *model.TransactionPage, ids map[string]struct{}) bool {
	for _, t := range p.Data {
		if _, ok := ids[t.ID]; ok {
			return true
		}
	}
	return false
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
