package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

const defaultBaseURL = "https://api.openai.com/v1"

// providerBaseURLs maps provider names to their OpenAI-compatible endpoint.
var providerBaseURLs = map[string]string{
	"openai":     defaultBaseURL,
	"gemini":     "https://generativelanguage.googleapis.com/v1beta/openai",
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
}

// Router picks the endpoint for every call from the live settings: the
// active API connection wins, otherwise the configured defaults are used.
type Router struct {
	settings func() model.Settings
	defaults ClientConfig

	mu      sync.Mutex
	clients map[ClientConfig]Generator
	factory func(ClientConfig) Generator
}

// NewRouter returns a Router reading connections from settings.
func NewRouter(settings func() model.Settings, defaults ClientConfig) *Router {
	return &Router{
		settings: settings,
		defaults: defaults,
		clients:  map[ClientConfig]Generator{},
		factory:  func(cfg ClientConfig) Generator { return NewClient(cfg) },
	}
}

// Resolve returns the endpoint configuration the next call would use.
func (r *Router) Resolve() (ClientConfig, error) {
	if conn, ok := r.settings().ActiveConnection(); ok && conn.APIKey != "" {
		cfg := r.defaults
		cfg.APIKey = conn.APIKey
		cfg.Model = firstNonEmpty(conn.Model, r.defaults.Model)
		cfg.BaseURL = conn.BaseURL
		if cfg.BaseURL == "" {
			cfg.BaseURL = providerBaseURLs[strings.ToLower(conn.Provider)]
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = firstNonEmpty(r.defaults.BaseURL, defaultBaseURL)
		}
		return cfg, nil
	}
	if r.defaults.APIKey != "" {
		return r.defaults, nil
	}
	return ClientConfig{}, ErrNoConnection
}

// Generate resolves the endpoint and forwards req to it.
func (r *Router) Generate(ctx context.Context, req Request) (Response, error) {
	cfg, err := r.Resolve()
	if err != nil {
		requestsTotal.WithLabelValues("no_connection").Inc()
		return Response{}, err
	}
	if req.Model == "" {
		req.Model = cfg.Model
	}
	return r.client(cfg).Generate(ctx, req)
}

func (r *Router) client(cfg ClientConfig) Generator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.clients[cfg]; ok {
		return g
	}
	g := r.factory(cfg)
	r.clients[cfg] = g
	return g
}
