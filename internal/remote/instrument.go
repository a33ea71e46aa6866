package remote

import (
	"context"
	"time"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

// Instrument decorates s so every call is counted, timed, and every failure
// comes back as a *ClassifiedError.
func Instrument(s Store) Store {
	if s == nil {
		return nil
	}
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{next: s}
}

type instrumented struct{ next Store }

func (i *instrumented) observe(op, table string, start time.Time, err error) error {
	callsTotal.WithLabelValues(op, table).Inc()
	callDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	err = Wrap(op, table, err)
	failuresTotal.WithLabelValues(table, Classify(err).String()).Inc()
	return err
}

func (i *instrumented) Select(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error) {
	start := time.Now()
	rows, err := i.next.Select(ctx, table, filter, order)
	return rows, i.observe("select", table, start, err)
}

func (i *instrumented) Insert(ctx context.Context, table string, rows []Row) error {
	start := time.Now()
	return i.observe("insert", table, start, i.next.Insert(ctx, table, rows))
}

func (i *instrumented) Upsert(ctx context.Context, table string, rows []Row) error {
	start := time.Now()
	return i.observe("upsert", table, start, i.next.Upsert(ctx, table, rows))
}

func (i *instrumented) Update(ctx context.Context, table string, patch Row, filter Filter) error {
	start := time.Now()
	return i.observe("update", table, start, i.next.Update(ctx, table, patch, filter))
}

func (i *instrumented) Delete(ctx context.Context, table string, filter Filter) error {
	start := time.Now()
	return i.observe("delete", table, start, i.next.Delete(ctx, table, filter))
}

func (i *instrumented) HealthPing(ctx context.Context) error {
	if p, ok := i.next.(HealthPinger); ok {
		return p.HealthPing(ctx)
	}
	_, err := i.next.Select(ctx, model.TableProfiles, Filter{ColumnID: "__health_check__"}, nil)
	return err
}
