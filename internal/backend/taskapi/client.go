// Package taskapi implements service.Service against the task gateway:
// REST for login and registration, GraphQL over HTTP for tasks, and
// graphql-transport-ws for the taskCreated subscription.
package taskapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"taskdash/internal/config"
)

// DefaultTimeout is the per-request timeout when the config sets none.
const DefaultTimeout = 10 * time.Second

// Client implements service.Service.
type Client struct {
	apiURL     string
	graphqlURL string
	wsURL      string
	token      string
	timeout    time.Duration
	http       *http.Client
	log        zerolog.Logger
}

// New creates a client for the endpoints in cfg. A non-empty token is sent
// as a bearer credential on every GraphQL request and on the subscription
// handshake. The logger is taken from ctx.
//
// A base *http.Client may be supplied through ctx under oauth2.HTTPClient.
func New(ctx context.Context, cfg *config.Config, token string) (*Client, error) {
	timeout := cfg.API.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var httpClient *http.Client
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(ctx, src)
	} else if base, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		httpClient = base
	} else {
		httpClient = &http.Client{}
	}

	return &Client{
		apiURL:     cfg.API.URL,
		graphqlURL: cfg.API.GraphQLURL,
		wsURL:      cfg.API.WSURL,
		token:      token,
		timeout:    timeout,
		http:       httpClient,
		log:        zerolog.Ctx(ctx).With().Str("component", "taskapi").Logger(),
	}, nil
}
