package parasut

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/config"
)

const (
	// ProductionBaseURL is the v4 API root
	ProductionBaseURL = "https://api.parasut.com/v4"
	// ProductionTokenURL is the OAuth2 token endpoint
	ProductionTokenURL = "https://api.parasut.com/oauth/token"

	defaultPageSize      = 25
	defaultMaxPages      = 20
	defaultListTimeout   = 30 * time.Second
	defaultSingleTimeout = 10 * time.Second
	defaultTokenTimeout  = 15 * time.Second

	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024
)

// Config holds credentials and limits for one Parasut company
type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	CompanyID    string

	BaseURL  string
	TokenURL string

	PageSize      int
	MaxPages      int
	ListTimeout   time.Duration
	SingleTimeout time.Duration
	TokenTimeout  time.Duration
}

// ConfigFrom converts the application settings section
func ConfigFrom(c config.ParasutConfig) Config {
	return Config{
		ClientID:      c.ClientID,
		ClientSecret:  c.ClientSecret,
		Username:      c.Username,
		Password:      c.Password,
		CompanyID:     c.CompanyID,
		BaseURL:       c.BaseURL,
		TokenURL:      c.TokenURL,
		PageSize:      c.PageSize,
		MaxPages:      c.MaxPages,
		ListTimeout:   c.ListTimeout,
		SingleTimeout: c.SingleTimeout,
		TokenTimeout:  c.TokenTimeout,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = ProductionBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TokenURL == "" {
		c.TokenURL = ProductionTokenURL
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.ListTimeout <= 0 {
		c.ListTimeout = defaultListTimeout
	}
	if c.SingleTimeout <= 0 {
		c.SingleTimeout = defaultSingleTimeout
	}
	if c.TokenTimeout <= 0 {
		c.TokenTimeout = defaultTokenTimeout
	}
	return c
}

// Validate reports every missing credential at once
func (c Config) Validate() error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"client_id", c.ClientID},
		{"client_secret", c.ClientSecret},
		{"username", c.Username},
		{"password", c.Password},
		{"company_id", c.CompanyID},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing parasut %s", reconcile.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// endpoint returns the company-scoped collection URL of a resource type
func (c Config) endpoint(resourceType string) string {
	return fmt.Sprintf("%s/%s/%s", c.BaseURL, c.CompanyID, resourceType)
}
