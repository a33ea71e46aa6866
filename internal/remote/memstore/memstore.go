// Package memstore is an in-memory remote.Store with call counting, fault
// injection and artificial latency. It backs tests and offline runs.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
)

// Fault decides whether a call fails. Returning nil lets the call proceed.
type Fault func(op, table string) error

// Store keeps rows per table in insertion order.
type Store struct {
	mu      sync.Mutex
	tables  map[string][]remote.Row
	calls   map[string]int
	fault   Fault
	latency time.Duration
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tables: map[string][]remote.Row{},
		calls:  map[string]int{},
	}
}

// SetFault installs f for every later call; nil clears it.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

// SetLatency delays every call by d, honouring context cancellation.
func (s *Store) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// Calls returns how many times op ran against table. An empty table counts
// every table.
func (s *Store) Calls(op, table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if table != "" {
		return s.calls[op+"/"+table]
	}
	n := 0
	for k, v := range s.calls {
		if len(k) > len(op) && k[:len(op)+1] == op+"/" {
			n += v
		}
	}
	return n
}

// Writes counts every insert, upsert, update and delete.
func (s *Store) Writes() int {
	return s.Calls("insert", "") + s.Calls("upsert", "") + s.Calls("update", "") + s.Calls("delete", "")
}

// ResetCalls zeroes the call counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	s.calls = map[string]int{}
	s.mu.Unlock()
}

// Seed stores rows directly, bypassing counters and faults.
func (s *Store) Seed(table string, rows ...remote.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], clone(r))
	}
}

// Rows returns a copy of every row in table.
func (s *Store) Rows(table string) []remote.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remote.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

func (s *Store) enter(ctx context.Context, op, table string) error {
	s.mu.Lock()
	s.calls[op+"/"+table]++
	fault, latency := s.fault, s.latency
	s.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fault != nil {
		return fault(op, table)
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, filter remote.Filter, order *remote.Order) ([]remote.Row, error) {
	if err := s.enter(ctx, "select", table); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []remote.Row
	for _, r := range s.tables[table] {
		if matches(r, filter) {
			out = append(out, clone(r))
		}
	}
	s.mu.Unlock()

	if order != nil {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][order.Column], out[j][order.Column])
			if order.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, rows []remote.Row) error {
	if err := s.enter(ctx, "insert", table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.tables[table]
	for _, r := range rows {
		if s.indexOf(table, remote.RowID(r)) >= 0 {
			return &remote.StatusError{StatusCode: 409, Code: remote.CodeUniqueViolation, Message: "duplicate id " + remote.RowID(r)}
		}
	}
	for _, r := range rows {
		existing = append(existing, clone(r))
	}
	s.tables[table] = existing
	return nil
}

func (s *Store) Upsert(ctx context.Context, table string, rows []remote.Row) error {
	if err := s.enter(ctx, "upsert", table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if i := s.indexOf(table, remote.RowID(r)); i >= 0 {
			s.tables[table][i] = clone(r)
			continue
		}
		s.tables[table] = append(s.tables[table], clone(r))
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, patch remote.Row, filter remote.Filter) error {
	if err := s.enter(ctx, "update", table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.tables[table] {
		if !matches(r, filter) {
			continue
		}
		for k, v := range clone(patch) {
			r[k] = v
		}
		s.tables[table][i] = r
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table string, filter remote.Filter) error {
	if len(filter) == 0 {
		return remote.ErrUnfilteredDelete
	}
	if err := s.enter(ctx, "delete", table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tables[table][:0]
	for _, r := range s.tables[table] {
		if !matches(r, filter) {
			kept = append(kept, r)
		}
	}
	s.tables[table] = kept
	return nil
}

// HealthPing implements remote.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.enter(ctx, "ping", "")
}

func (s *Store) indexOf(table, id string) int {
	if id == "" {
		return -1
	}
	for i, r := range s.tables[table] {
		if remote.RowID(r) == id {
			return i
		}
	}
	return -1
}

func matches(r remote.Row, filter remote.Filter) bool {
	for k, v := range filter {
		if fmt.Sprint(r[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func compare(a, b any) int {
	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// clone deep-copies a row through JSON so callers never share nested values.
func clone(r remote.Row) remote.Row {
	raw, err := json.Marshal(r)
	if err != nil {
		out := make(remote.Row, len(r))
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	out := remote.Row{}
	_ = json.Unmarshal(raw, &out)
	return out
}
