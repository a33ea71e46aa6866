package trigger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/llm"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/localcache"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

type scriptedGen struct {
	mu      sync.Mutex
	prompts []string
	text    string
	tokens  int
	err     error
}

func (g *scriptedGen) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return llm.Response{}, g.err
	}
	return llm.Response{Text: g.text, TokensUsed: g.tokens}, nil
}

func (g *scriptedGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

var testPersonas = []model.Persona{
	{ID: "p-a", Name: "하나", Role: "친구", Personality: "다정함", Tone: "반말"},
	{ID: "p-b", Name: "두리", Role: "코치", Personality: "단호함", Tone: "존댓말"},
	{ID: "p-c", Name: "세찌", Role: "관찰자", Personality: "조용함", Tone: "존댓말"},
}

func newTestScheduler(t *testing.T, gen llm.Generator, tune func(*Options)) (*Scheduler, *state.Store) {
	t.Helper()
	st := state.New()
	st.SetPersonas(testPersonas)
	opts := Options{Clock: time.Now}
	if tune != nil {
		tune(&opts)
	}
	s := NewScheduler(st, gen, zerolog.Nop(), opts)
	t.Cleanup(func() { _ = s.Close() })
	return s, st
}

func flush(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func TestRotationFairness(t *testing.T) {
	r := NewRotation()
	counts := map[string]int{}
	var order []string
	for i := 0; i < 10; i++ {
		p := r.Next("todo_completed", testPersonas)
		counts[p.ID]++
		order = append(order, p.ID)
	}
	assert.Equal(t, map[string]int{"p-a": 4, "p-b": 3, "p-c": 3}, counts)
	assert.Equal(t, []string{"p-a", "p-b", "p-c", "p-a"}, order[:4])

	// Chains advance independently.
	assert.Equal(t, "p-a", r.Next("journal_added_good", testPersonas).ID)
	assert.Equal(t, 10, r.Counter("todo_completed"))
	assert.Equal(t, 1, r.Counter("journal_added_good"))
}

func TestRotationEmptyPool(t *testing.T) {
	r := NewRotation()
	assert.Equal(t, model.DefaultPersonaID, r.Next("x", nil).ID)
	assert.Equal(t, 0, r.Counter("x"))
}

func TestChainKey(t *testing.T) {
	tests := []struct {
		kind model.TriggerKind
		data map[string]any
		want string
	}{
		{model.TriggerJournalAdded, map[string]any{"mood": "Good"}, "journal_added_good"},
		{model.TriggerJournalAdded, map[string]any{"mood": "bad"}, "journal_added_bad"},
		{model.TriggerJournalAdded, nil, "journal_added_neutral"},
		{model.TriggerTodoCompleted, map[string]any{"mood": "good"}, "todo_completed"},
		{model.TriggerScheduledDigest, nil, "scheduled_digest"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChainKey(tt.kind, tt.data))
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		in, title, body string
	}{
		{"제목: 비 오는 오후\n\n첫 문단.\n\n둘째 문단.", "비 오는 오후", "첫 문단.\n\n둘째 문단."},
		{"**제목: 굵은 제목**\n본문", "굵은 제목", "본문"},
		{"그냥 본문만 있다.", "", "그냥 본문만 있다."},
		{"제목:   \n본문", "", "본문"},
	}
	for _, tt := range tests {
		title, body := ParseTitle(tt.in)
		assert.Equal(t, tt.title, title, tt.in)
		assert.Equal(t, tt.body, body, tt.in)
	}
}

func TestEnrich(t *testing.T) {
	now := time.Now().UTC()
	snap := state.Snapshot{
		Todos:  []model.Todo{{ID: "1"}, {ID: "2", Completed: true}, {ID: "3"}},
		Events: []model.Event{{ID: "e"}},
		JournalEntries: []model.JournalEntry{
			{ID: "j1", Title: "old", CreatedAt: now.Add(-4 * time.Hour)},
			{ID: "j2", Title: "a", CreatedAt: now.Add(-3 * time.Hour)},
			{ID: "j3", Title: "b", CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "j4", Title: "c", CreatedAt: now.Add(-time.Hour)},
		},
	}
	var msgs []model.ChatMessage
	for i := 0; i < 10; i++ {
		msgs = append(msgs, model.ChatMessage{Role: model.RoleUser, Content: string(rune('a' + i)), Timestamp: now.Add(time.Duration(i) * time.Minute)})
		msgs = append(msgs, model.ChatMessage{Role: model.RoleAssistant, Content: "reply", Timestamp: now.Add(time.Duration(i) * time.Minute)})
	}
	snap.ChatSessions = []model.ChatSession{{ID: "s", Messages: msgs}}

	c := Enrich(snap, map[string]any{"title": "x"})
	assert.Equal(t, 2, c.PendingTodos)
	assert.Equal(t, 1, c.CompletedTodos)
	assert.Equal(t, 1, c.TotalEvents)
	assert.Equal(t, []string{"c", "b", "a"}, c.RecentJournals)
	require.Len(t, c.RecentUtterances, 8)
	assert.Equal(t, "j", c.RecentUtterances[0])
	assert.Equal(t, "x", c.Data["title"])
}

func TestSchedulerCreatesPost(t *testing.T) {
	gen := &scriptedGen{text: "제목: 오늘의 기록\n\n사용자가 일기를 쓴 것 같다.", tokens: 17}
	s, st := newTestScheduler(t, gen, nil)

	s.Trigger(model.TriggerJournalAdded, map[string]any{"title": "산책", "mood": "good"})
	flush(t, s)

	posts := st.CommunityPosts()
	require.Len(t, posts, 1)
	p := posts[0]
	assert.Equal(t, "p-a", p.Author)
	assert.Equal(t, "오늘의 기록", p.Title)
	assert.Equal(t, "사용자가 일기를 쓴 것 같다.", p.Content)
	assert.Equal(t, model.TriggerJournalAdded, p.Trigger)
	assert.Empty(t, p.ReplyTo)

	usage := st.Settings().APIUsage
	assert.EqualValues(t, 1, usage.TotalRequests)
	assert.EqualValues(t, 17, usage.TotalTokens)
	assert.False(t, usage.LastRequestDate.IsZero())

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "하나")
	assert.Contains(t, gen.prompts[0], "제목: <제목>")
	assert.Contains(t, gen.prompts[0], "산책")
}

func TestSchedulerNoPostOnFailure(t *testing.T) {
	for name, gen := range map[string]*scriptedGen{
		"error": {err: errors.New("boom")},
		"empty": {err: llm.ErrEmptyResponse},
		"title": {text: "제목: 제목만"},
	} {
		t.Run(name, func(t *testing.T) {
			s, st := newTestScheduler(t, gen, nil)
			s.Trigger(model.TriggerTodoCompleted, map[string]any{"text": "운동"})
			flush(t, s)

			assert.Empty(t, st.CommunityPosts())
			if name != "title" {
				assert.Zero(t, st.Settings().APIUsage.TotalRequests)
			}
		})
	}
}

func TestSchedulerGuards(t *testing.T) {
	t.Run("auto reactions off", func(t *testing.T) {
		gen := &scriptedGen{text: "본문"}
		s, st := newTestScheduler(t, gen, nil)
		st.UpdateSettings(func(v model.Settings) model.Settings { v.AutoAIReactions = false; return v })

		s.Trigger(model.TriggerEventAdded, nil)
		flush(t, s)
		assert.Zero(t, gen.calls())
		assert.False(t, s.Enabled())
	})
	t.Run("server queue owns signed in users", func(t *testing.T) {
		gen := &scriptedGen{text: "본문"}
		var signedIn atomic.Bool
		signedIn.Store(true)
		s, _ := newTestScheduler(t, gen, func(o *Options) {
			o.ServerQueueForSignedIn = true
			o.SignedIn = signedIn.Load
		})

		s.Trigger(model.TriggerEventAdded, nil)
		flush(t, s)
		assert.Zero(t, gen.calls())

		signedIn.Store(false)
		s.Trigger(model.TriggerEventAdded, nil)
		flush(t, s)
		assert.Equal(t, 1, gen.calls())
	})
}

func TestSchedulerChainReplies(t *testing.T) {
	gen := &scriptedGen{text: "제목: t\n본문", tokens: 3}
	s, st := newTestScheduler(t, gen, func(o *Options) { o.ChainLength = 2 })
	st.SetCommunityPosts([]model.CommunityPost{{ID: "old", Order: -5}})

	s.Trigger(model.TriggerTodoAdded, nil)
	flush(t, s)

	posts := st.CommunityPosts()
	require.Len(t, posts, 3)
	second, first := posts[0], posts[1]
	assert.Equal(t, first.ID, second.ReplyTo)
	assert.Empty(t, first.ReplyTo)
	assert.Equal(t, "p-a", first.Author)
	assert.Equal(t, "p-b", second.Author)
	assert.Equal(t, -6, first.Order)
	assert.Equal(t, -7, second.Order)
	assert.True(t, strings.Contains(gen.prompts[1], "앞선 글"))
	assert.EqualValues(t, 2, st.Settings().APIUsage.TotalRequests)
}

func activeAt(st *state.Store, at time.Time) {
	st.UpdateActivityLog(func(v []model.ActivityItem) []model.ActivityItem {
		return model.AppendActivity(v, model.NewActivity("todo_added", "할 일이 추가됨", nil, at), 200)
	})
}

func TestDigestBuckets(t *testing.T) {
	gen := &scriptedGen{text: "제목: 돌아보기\n본문", tokens: 1}
	s, st := newTestScheduler(t, gen, nil)
	cache := localcache.NewMemory()
	d := NewDigest(s, cache, zerolog.Nop(), DigestOptions{})

	start := time.Date(2026, 10, 15, 1, 0, 0, 0, time.Local)
	for i := 0; i < 3; i++ {
		now := start.Add(time.Duration(i) * 4 * time.Hour)
		activeAt(st, now.Add(-10*time.Minute))
		assert.True(t, d.Tick(now), "bucket %d", i)
		assert.False(t, d.Tick(now.Add(30*time.Minute)), "same bucket %d", i)
	}
	flush(t, s)

	posts := st.CommunityPosts()
	require.Len(t, posts, 3)
	for _, p := range posts {
		assert.Equal(t, model.TriggerScheduledDigest, p.Trigger)
	}
	assert.Equal(t, "2026-10-15T08", localcache.Load(cache, LastDigestBucketKey, ""))

	// A fresh digest over the same cache sees the persisted bucket.
	d2 := NewDigest(s, cache, zerolog.Nop(), DigestOptions{})
	assert.False(t, d2.Tick(start.Add(8*time.Hour+time.Hour)))
}

func TestDigestRequiresActivity(t *testing.T) {
	gen := &scriptedGen{text: "본문"}
	s, st := newTestScheduler(t, gen, nil)
	d := NewDigest(s, localcache.NewMemory(), zerolog.Nop(), DigestOptions{})

	now := time.Date(2026, 10, 15, 13, 0, 0, 0, time.Local)
	assert.False(t, d.Tick(now))

	activeAt(st, now.Add(-5*time.Hour))
	assert.False(t, d.Tick(now))

	activeAt(st, now.Add(-time.Hour))
	assert.True(t, d.Tick(now))
}

func TestBucketKey(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 10, 15, h, 59, 0, 0, time.UTC) }
	assert.Equal(t, "2026-10-15T00", BucketKey(at(3), 4))
	assert.Equal(t, "2026-10-15T04", BucketKey(at(4), 4))
	assert.Equal(t, "2026-10-15T20", BucketKey(at(23), 4))
	assert.Equal(t, "2026-10-15T23", BucketKey(at(23), 1))
}

func TestRecentActivityScanLimit(t *testing.T) {
	now := time.Now()
	log := make([]model.ActivityItem, 0, 3)
	log = append(log, model.ActivityItem{Timestamp: now.Add(-10 * time.Hour)})
	log = append(log, model.ActivityItem{Timestamp: now.Add(-time.Minute)})
	assert.False(t, RecentActivity(log, now, 4*time.Hour, 1))
	assert.True(t, RecentActivity(log, now, 4*time.Hour, 2))
}

type blockingGen struct {
	release chan struct{}
	calls   atomic.Int32
}

func (g *blockingGen) Generate(ctx context.Context, _ llm.Request) (llm.Response, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
	case <-ctx.Done():
		return llm.Response{}, ctx.Err()
	}
	return llm.Response{Text: "오늘 하루 정말 수고 많으셨어요.", TokensUsed: 9}, nil
}

func TestCommenter(t *testing.T) {
	gen := &blockingGen{release: make(chan struct{})}
	s, st := newTestScheduler(t, gen, nil)
	st.SetJournalEntries([]model.JournalEntry{{ID: "j1", Title: "하루", Content: "길었다"}})
	c := NewCommenter(s)

	c.Request("j1")
	assert.True(t, c.InFlight("j1"))
	c.Request("j1")

	close(gen.release)
	flush(t, s)
	assert.False(t, c.InFlight("j1"))

	entries := st.JournalEntries()
	require.Len(t, entries[0].Comments, 1)
	assert.Equal(t, "p-a", entries[0].Comments[0].Author)
	assert.EqualValues(t, 9, st.Settings().APIUsage.TotalTokens)

	c.Request("j1")
	c.Request("missing")
	flush(t, s)
	assert.EqualValues(t, 1, gen.calls.Load())
}
