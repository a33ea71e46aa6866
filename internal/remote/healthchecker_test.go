package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type pingStore struct {
	Store
	err error
}

func (p pingStore) HealthPing(context.Context) error { return p.err }

func TestHealthChecker_Check(t *testing.T) {
	hc := NewHealthChecker(pingStore{}, zerolog.Nop(), time.Second)
	assert.False(t, hc.IsHealthy())
	assert.True(t, hc.Check(context.Background()))
	assert.True(t, hc.IsHealthy())

	hc = NewHealthChecker(pingStore{err: errors.New("down")}, zerolog.Nop(), time.Second)
	assert.False(t, hc.Check(context.Background()))
	assert.False(t, hc.IsHealthy())
	assert.Equal(t, "remote", hc.Name())
}

func TestHealthChecker_NilStore(t *testing.T) {
	hc := NewHealthChecker(nil, zerolog.Nop(), 0)
	assert.False(t, hc.Check(context.Background()))
}

func TestInstrument_WrapsErrors(t *testing.T) {
	s := Instrument(failingStore{err: &StatusError{StatusCode: 403}})
	err := s.Insert(context.Background(), "todos", nil)
	var ce *ClassifiedError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "insert", ce.Op)
	assert.Equal(t, Authorization, ce.Category)
	assert.Same(t, s, Instrument(s))
	assert.Nil(t, Instrument(nil))
}

type failingStore struct{ err error }

func (f failingStore) Select(context.Context, string, Filter, *Order) ([]Row, error) { return nil, f.err }
func (f failingStore) Insert(context.Context, string, []Row) error                  { return f.err }
func (f failingStore) Upsert(context.Context, string, []Row) error                  { return f.err }
func (f failingStore) Update(context.Context, string, Row, Filter) error            { return f.err }
func (f failingStore) Delete(context.Context, string, Filter) error                 { return f.err }
