package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/llm"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/shardqueue"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

// Options configures a Scheduler.
type Options struct {
	// ChainLength is the number of persona turns per firing.
	ChainLength int
	// ServerQueueForSignedIn hands signed-in users to the server-side queue.
	ServerQueueForSignedIn bool
	// SignedIn reports whether a user is currently signed in.
	SignedIn func() bool

	Temperature float64
	MaxTokens   int
	Clock       func() time.Time
	Queue       shardqueue.Config
}

// Scheduler runs one generation job per trigger on a queue sharded by chain
// key, so firings of one chain are processed in order.
type Scheduler struct {
	state    *state.Store
	gen      llm.Generator
	log      zerolog.Logger
	opts     Options
	rotation *Rotation
	exec     *shardqueue.Executor

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	keys map[string]struct{}
}

// NewScheduler returns a scheduler posting to st's community board.
func NewScheduler(st *state.Store, gen llm.Generator, log zerolog.Logger, opts Options) *Scheduler {
	if opts.ChainLength <= 0 {
		opts.ChainLength = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SignedIn == nil {
		opts.SignedIn = func() bool { return false }
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		state:    st,
		gen:      gen,
		log:      log,
		opts:     opts,
		rotation: NewRotation(),
		ctx:      ctx,
		cancel:   cancel,
		keys:     map[string]struct{}{},
	}
	qcfg := opts.Queue
	qcfg.Name = "trigger"
	qcfg.Logger = log
	qcfg.MaxAttempts = 1
	s.exec = shardqueue.New(qcfg)
	return s
}

// Rotation exposes the per-chain counters.
func (s *Scheduler) Rotation() *Rotation { return s.rotation }

// Enabled reports whether this scheduler is responsible for the current
// user: auto reactions are on and the server queue does not own them.
func (s *Scheduler) Enabled() bool {
	if !s.state.Settings().AutoAIReactions {
		return false
	}
	return !(s.opts.ServerQueueForSignedIn && s.opts.SignedIn())
}

func (s *Scheduler) guard(kind model.TriggerKind) bool {
	if !s.state.Settings().AutoAIReactions {
		firedTotal.WithLabelValues(string(kind), "disabled").Inc()
		return false
	}
	if s.opts.ServerQueueForSignedIn && s.opts.SignedIn() {
		firedTotal.WithLabelValues(string(kind), "delegated").Inc()
		return false
	}
	return true
}

// Trigger schedules an AI reaction to kind. It never blocks on generation.
func (s *Scheduler) Trigger(kind model.TriggerKind, data map[string]any) {
	s.submit(kind, data)
}

func (s *Scheduler) submit(kind model.TriggerKind, data map[string]any) bool {
	if !s.guard(kind) {
		return false
	}
	chain := ChainKey(kind, data)
	pool := s.state.Personas()
	personas := make([]model.Persona, s.opts.ChainLength)
	for i := range personas {
		personas[i] = s.rotation.Next(chain, pool)
	}
	tctx := Enrich(s.state.Snapshot(), data)

	err := s.enqueue(chain, func(ctx context.Context) error {
		s.run(ctx, kind, tctx, personas)
		return nil
	})
	if err != nil {
		firedTotal.WithLabelValues(string(kind), "dropped").Inc()
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("chain", chain).Msg("trigger dropped")
		return false
	}
	firedTotal.WithLabelValues(string(kind), "accepted").Inc()
	s.log.Debug().Str("kind", string(kind)).Str("chain", chain).Str("persona", personas[0].ID).Msg("trigger accepted")
	return true
}

func (s *Scheduler) enqueue(key string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return s.exec.Submit(s.ctx, key, shardqueue.JobFunc(fn))
}

// run generates one post per persona. Each post replies to the previous
// one. The chain stops at the first failure.
func (s *Scheduler) run(ctx context.Context, kind model.TriggerKind, tctx Context, personas []model.Persona) {
	var prev *Turn
	replyTo := ""
	for _, p := range personas {
		resp, err := s.generate(ctx, BuildPostPrompt(p, kind, tctx, prev))
		if err != nil {
			generationFailures.WithLabelValues("post").Inc()
			s.log.Warn().Err(err).Str("kind", string(kind)).Str("persona", p.ID).Msg("post generation failed, no post created")
			return
		}
		title, body := ParseTitle(resp.Text)
		if body == "" {
			generationFailures.WithLabelValues("post").Inc()
			s.log.Warn().Str("kind", string(kind)).Str("persona", p.ID).Msg("post generation returned a title only")
			return
		}
		post := s.addPost(model.CommunityPost{
			ID:        model.NewID(),
			Author:    p.ID,
			Title:     title,
			Content:   body,
			Timestamp: s.opts.Clock().UTC(),
			ReplyTo:   replyTo,
			Trigger:   kind,
		})
		s.recordUsage(resp)
		postsCreated.WithLabelValues(string(kind)).Inc()
		s.log.Info().Str("kind", string(kind)).Str("persona", p.ID).Str("post_id", post.ID).Msg("community post created")

		replyTo = post.ID
		prev = &Turn{Persona: p, Content: body}
	}
}

func (s *Scheduler) generate(ctx context.Context, prompt string) (llm.Response, error) {
	resp, err := s.gen.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return llm.Response{}, err
	}
	if resp.Text == "" {
		return llm.Response{}, llm.ErrEmptyResponse
	}
	return resp, nil
}

// addPost prepends p with an order below every existing post.
func (s *Scheduler) addPost(p model.CommunityPost) model.CommunityPost {
	s.state.UpdateCommunityPosts(func(v []model.CommunityPost) []model.CommunityPost {
		p.Order = 0
		for i, q := range v {
			if i == 0 || q.Order < p.Order {
				p.Order = q.Order
			}
		}
		if len(v) > 0 {
			p.Order--
		}
		return append([]model.CommunityPost{p}, v...)
	})
	return p
}

// recordUsage adds one request and its tokens to the settings counters.
func (s *Scheduler) recordUsage(resp llm.Response) {
	now := s.opts.Clock().UTC()
	s.state.UpdateSettings(func(st model.Settings) model.Settings {
		st.APIUsage.TotalRequests++
		st.APIUsage.TotalTokens += int64(resp.TokensUsed)
		st.APIUsage.LastRequestDate = now
		return st
	})
}

// Flush waits until every job submitted so far has finished.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := s.exec.Barrier(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close aborts in-flight generation and stops the queue.
func (s *Scheduler) Close() error {
	s.cancel()
	s.exec.Stop()
	return nil
}
