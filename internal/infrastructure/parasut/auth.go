package parasut

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/cache"
)

// tokenExpiryMargin is subtracted from the token lifetime before caching
const tokenExpiryMargin = 30 * time.Second

// Authenticator exchanges the configured credentials for a bearer token
// using the OAuth2 password grant and keeps it in a TokenCache.
type Authenticator struct {
	cfg        Config
	oauth      *oauth2.Config
	tokens     cache.TokenCache
	httpClient *http.Client
	logger     *zap.Logger

	// serializes exchanges so concurrent callers share one token
	mu sync.Mutex
}

// NewAuthenticator creates an authenticator. A nil cache keeps tokens in memory.
func NewAuthenticator(cfg Config, tokens cache.TokenCache, httpClient *http.Client, logger *zap.Logger) *Authenticator {
	if tokens == nil {
		tokens = cache.NewInMemoryTokenCache()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
	}
}

// cacheKey scopes cached tokens to one user of one company
func (a *Authenticator) cacheKey() string {
	return a.cfg.CompanyID + ":" + a.cfg.Username
}

// Token returns a cached token or performs a new exchange
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	token, ok, err := a.tokens.Get(ctx, a.cacheKey())
	if err != nil {
		a.logger.Warn("token cache read failed", zap.Error(err))
	}
	if ok && token != "" {
		return token, nil
	}
	return a.exchange(ctx)
}

// Exchange always performs a fresh token exchange and caches the result
func (a *Authenticator) Exchange(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exchange(ctx)
}

// Invalidate drops the cached token, forcing the next Token call to exchange
func (a *Authenticator) Invalidate(ctx context.Context) {
	if err := a.tokens.Delete(ctx, a.cacheKey()); err != nil {
		a.logger.Warn("token cache delete failed", zap.Error(err))
	}
}

func (a *Authenticator) exchange(ctx context.Context) (string, error) {
	if err := a.cfg.Validate(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.TokenTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	tok, err := a.oauth.PasswordCredentialsToken(ctx, a.cfg.Username, a.cfg.Password)
	if err != nil {
		a.logger.Error("Parasut authentication failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", reconcile.ErrAuthentication, err)
	}

	if !tok.Expiry.IsZero() {
		ttl := time.Until(tok.Expiry) - tokenExpiryMargin
		if err := a.tokens.Set(ctx, a.cacheKey(), tok.AccessToken, ttl); err != nil {
			a.logger.Warn("token cache write failed", zap.Error(err))
		}
	}
	return tok.AccessToken, nil
}
