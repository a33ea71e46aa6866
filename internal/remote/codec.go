package remote

import (
	"encoding/json"
	"fmt"
)

// EncodeRow converts v into a Row owned by userID.
func EncodeRow(userID string, v any) (Row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	row := Row{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	row[ColumnUserID] = userID
	return row, nil
}

// EncodeRows converts items into rows owned by userID.
func EncodeRows[T any](userID string, items []T) ([]Row, error) {
	out := make([]Row, 0, len(items))
	for _, it := range items {
		row, err := EncodeRow(userID, it)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// DecodeRow converts a row back into T. Unknown columns are ignored.
func DecodeRow[T any](row Row) (T, error) {
	var v T
	raw, err := json.Marshal(row)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode row: %w", err)
	}
	return v, nil
}

// DecodeRows converts rows back into T values.
func DecodeRows[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := DecodeRow[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// RowID returns the row's id as a string, or "".
func RowID(r Row) string {
	id, _ := r[ColumnID].(string)
	return id
}
