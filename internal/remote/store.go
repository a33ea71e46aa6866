// Package remote is the row-based CRUD surface of the authoritative remote
// store. Implementations live under internal/remote/<driver>/.
package remote

import (
	"context"
	"errors"
)

// Row is one record. Every row carries "id" and "user_id".
type Row map[string]any

// Filter matches rows whose fields equal every given value.
type Filter map[string]any

// Order sorts Select results by one column.
type Order struct {
	Column     string
	Descending bool
}

// Store exposes per-table CRUD operations.
type Store interface {
	Select(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error)
	Insert(ctx context.Context, table string, rows []Row) error
	Upsert(ctx context.Context, table string, rows []Row) error
	Update(ctx context.Context, table string, patch Row, filter Filter) error
	Delete(ctx context.Context, table string, filter Filter) error
}

// HealthPinger is implemented by stores that can check connectivity cheaply.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// ErrUnfilteredDelete guards against deleting a whole table by accident.
var ErrUnfilteredDelete = errors.New("remote: delete requires a filter")

// Column names shared by every table.
const (
	ColumnID     = "id"
	ColumnUserID = "user_id"
)
