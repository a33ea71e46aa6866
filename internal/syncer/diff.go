package syncer

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/shardqueue"
)

// Baseline rows are kept without user_id so a change of user never makes
// every row look modified.

// currentRows encodes the collection's current value keyed by id, plus the
// ids in state order.
func (c *Coordinator) currentRows(coll model.Collection) (map[string]remote.Row, []string, error) {
	raw, err := json.Marshal(c.state.Value(coll))
	if err != nil {
		return nil, nil, err
	}
	var list []remote.Row
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, nil, err
	}
	rows := make(map[string]remote.Row, len(list))
	order := make([]string, 0, len(list))
	for _, r := range list {
		id := remote.RowID(r)
		if id == "" {
			c.log.Warn().Str("collection", string(coll)).Msg("record without id skipped for remote sync")
			continue
		}
		if _, dup := rows[id]; dup {
			continue
		}
		rows[id] = r
		order = append(order, id)
	}
	return rows, order, nil
}

// currentUserData encodes the single user_data document.
func (c *Coordinator) currentUserData() (remote.Row, error) {
	ud := model.UserData{
		Settings:     c.state.Settings(),
		ActivityLog:  c.state.ActivityLog(),
		CalendarTags: c.state.CalendarTags(),
		ChatSessions: c.state.ChatSessions(),
	}
	if ud.ActivityLog == nil {
		ud.ActivityLog = []model.ActivityItem{}
	}
	if ud.CalendarTags == nil {
		ud.CalendarTags = []model.CalendarTag{}
	}
	if ud.ChatSessions == nil {
		ud.ChatSessions = []model.ChatSession{}
	}
	if ud.Settings.APIConnections == nil {
		ud.Settings.APIConnections = []model.APIConnection{}
	}
	raw, err := json.Marshal(ud)
	if err != nil {
		return nil, err
	}
	row := remote.Row{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// advanceLocked records the current value as already persisted remotely.
func (c *Coordinator) advanceLocked(coll model.Collection) {
	if coll.InUserData() {
		row, err := c.currentUserData()
		if err != nil {
			c.log.Warn().Err(err).Msg("encode user_data failed")
			return
		}
		c.userData = row
		return
	}
	rows, _, err := c.currentRows(coll)
	if err != nil {
		c.log.Warn().Err(err).Str("collection", string(coll)).Msg("encode collection failed")
		return
	}
	c.rows[coll] = rows
}

// pushChangesLocked diffs the collection against its baseline and submits
// one remote call per changed record.
func (c *Coordinator) pushChangesLocked(coll model.Collection) {
	userID := c.userID
	table := coll.Table()

	if coll.InUserData() {
		row, err := c.currentUserData()
		if err != nil {
			c.log.Warn().Err(err).Msg("encode user_data failed")
			return
		}
		if reflect.DeepEqual(row, c.userData) {
			return
		}
		c.userData = row
		c.submitUpsertLocked(table, []remote.Row{userDataRow(userID, row)})
		return
	}

	cur, order, err := c.currentRows(coll)
	if err != nil {
		c.log.Warn().Err(err).Str("collection", string(coll)).Msg("encode collection failed")
		return
	}
	prev := c.rows[coll]

	var inserts []remote.Row
	for _, id := range order {
		row := cur[id]
		old, ok := prev[id]
		if !ok {
			inserts = append(inserts, withUser(row, userID))
			continue
		}
		if patch := diffRow(old, row); len(patch) > 0 {
			filter := remote.Filter{remote.ColumnID: id, remote.ColumnUserID: userID}
			c.submitLocked(table, "update", func(ctx context.Context) error {
				return c.remote.Update(ctx, table, patch, filter)
			})
		}
	}
	if len(inserts) > 0 {
		c.submitLocked(table, "insert", func(ctx context.Context) error {
			return c.remote.Insert(ctx, table, inserts)
		})
	}

	var removed []string
	for id := range prev {
		if _, ok := cur[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	for _, id := range removed {
		filter := remote.Filter{remote.ColumnID: id, remote.ColumnUserID: userID}
		c.submitLocked(table, "delete", func(ctx context.Context) error {
			return c.remote.Delete(ctx, table, filter)
		})
	}

	c.rows[coll] = cur
}

// pushAllLocked uploads the whole collection and makes it the baseline.
// Used when the remote copy is empty.
func (c *Coordinator) pushAllLocked(coll model.Collection) int {
	userID := c.userID
	table := coll.Table()

	if coll.InUserData() {
		row, err := c.currentUserData()
		if err != nil {
			c.log.Warn().Err(err).Msg("encode user_data failed")
			return 0
		}
		c.userData = row
		c.submitUpsertLocked(table, []remote.Row{userDataRow(userID, row)})
		return 1
	}

	cur, order, err := c.currentRows(coll)
	if err != nil {
		c.log.Warn().Err(err).Str("collection", string(coll)).Msg("encode collection failed")
		return 0
	}
	c.rows[coll] = cur
	if len(order) == 0 {
		return 0
	}
	rows := make([]remote.Row, 0, len(order))
	for _, id := range order {
		rows = append(rows, withUser(cur[id], userID))
	}
	c.submitUpsertLocked(table, rows)
	return len(rows)
}

func (c *Coordinator) submitUpsertLocked(table string, rows []remote.Row) {
	c.submitLocked(table, "upsert", func(ctx context.Context) error {
		return c.remote.Upsert(ctx, table, rows)
	})
}

func (c *Coordinator) submitLocked(table, op string, fn func(ctx context.Context) error) {
	if err := c.exec.Submit(c.ctx, table, shardqueue.JobFunc(fn)); err != nil {
		writesDropped.WithLabelValues(table).Inc()
		c.log.Warn().Err(err).Str("table", table).Str("op", op).Msg("remote write not queued")
		return
	}
	writesSubmitted.WithLabelValues(table, op).Inc()
}

// diffRow returns the fields of next that differ from prev; fields dropped
// from next are patched to null.
func diffRow(prev, next remote.Row) remote.Row {
	patch := remote.Row{}
	for k, v := range next {
		if old, ok := prev[k]; !ok || !reflect.DeepEqual(old, v) {
			patch[k] = v
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			patch[k] = nil
		}
	}
	return patch
}

func withUser(row remote.Row, userID string) remote.Row {
	out := make(remote.Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	out[remote.ColumnUserID] = userID
	return out
}

func userDataRow(userID string, doc remote.Row) remote.Row {
	out := withUser(doc, userID)
	out[remote.ColumnID] = userID
	return out
}
