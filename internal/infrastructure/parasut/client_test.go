package parasut

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ledgersync/internal/domain/reconcile"
	"github.com/erp/ledgersync/internal/infrastructure/cache"
)

// fakeAPI serves the token endpoint and a company-scoped API
type fakeAPI struct {
	server      *httptest.Server
	tokenHits   atomic.Int32
	tokenStatus int
	// api handles /v4/42/<rest>; page is page[number] or 0
	api func(w http.ResponseWriter, r *http.Request, page int)
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{tokenStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		assert.Equal(t, "user@example.com", r.PostForm.Get("username"))
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":7200}`, f.tokenHits.Load())
	})
	mux.HandleFunc("/v4/42/", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page[number]"))
		f.api(w, r, page)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) config() Config {
	return Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Username:     "user@example.com",
		Password:     "pw",
		CompanyID:    "42",
		BaseURL:      f.server.URL + "/v4",
		TokenURL:     f.server.URL + "/oauth/token",
	}
}

func (f *fakeAPI) client() *Client {
	return NewClient(f.config(), cache.NewInMemoryTokenCache())
}

// pageBody renders a collection page with n contacts
func pageBody(page, n, pageCount int) string {
	data := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		data = append(data, map[string]any{
			"type":       "contacts",
			"id":         strconv.Itoa(page*100 + i),
			"attributes": map[string]any{"name": fmt.Sprintf("Contact %d-%d", page, i)},
		})
	}
	body, _ := json.Marshal(map[string]any{
		"data":     data,
		"included": []any{},
		"meta":     map[string]any{"page_count": pageCount},
	})
	return string(body)
}

func TestClient_FetchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("reads every page up to page_count", func(t *testing.T) {
		f := newFakeAPI(t)
		var requested []int
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			requested = append(requested, page)
			assert.Equal(t, "25", r.URL.Query().Get("page[size]"))
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(pageBody(page, 2, 3)))
		}

		res, err := f.client().FetchAll(ctx, reconcile.TypeContacts, reconcile.Query{})
		require.NoError(t, err)

		assert.Equal(t, []int{1, 2, 3}, requested)
		assert.Len(t, res.Batches, 3)
		assert.Equal(t, 6, res.RecordCount())
		assert.Equal(t, 3, res.Pages)
		assert.False(t, res.Truncated)
	})

	t.Run("stops on an empty page", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			n := 1
			if page == 2 {
				n = 0
			}
			_, _ = w.Write([]byte(pageBody(page, n, 9)))
		}

		res, err := f.client().FetchAll(ctx, reconcile.TypeContacts, reconcile.Query{})
		require.NoError(t, err)
		assert.Len(t, res.Batches, 1)
		assert.False(t, res.Truncated)
	})

	t.Run("missing page_count stops after the first page", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			_, _ = w.Write([]byte(`{"data":[{"type":"contacts","id":"1","attributes":{"name":"A"}}]}`))
		}

		res, err := f.client().FetchAll(ctx, reconcile.TypeContacts, reconcile.Query{})
		require.NoError(t, err)
		assert.Len(t, res.Batches, 1)
		assert.False(t, res.Truncated)
	})

	t.Run("failure on page 2 of 5 truncates", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			if page == 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(pageBody(page, 1, 5)))
		}

		res, err := f.client().FetchAll(ctx, reconcile.TypeContacts, reconcile.Query{})
		require.NoError(t, err)
		assert.True(t, res.Truncated)
		assert.Len(t, res.Batches, 1)
		assert.ErrorIs(t, res.Err, reconcile.ErrTransport)
	})

	t.Run("page cap truncates when pages remain", func(t *testing.T) {
		f := newFakeAPI(t)
		var calls atomic.Int32
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			calls.Add(1)
			_, _ = w.Write([]byte(pageBody(page, 1, 50)))
		}

		res, err := f.client().FetchAll(ctx, reconcile.TypeContacts, reconcile.Query{})
		require.NoError(t, err)
		assert.Equal(t, int32(20), calls.Load())
		assert.Len(t, res.Batches, 20)
		assert.True(t, res.Truncated)
		assert.NoError(t, res.Err)
	})

	t.Run("page cap equal to page_count is not truncation", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			_, _ = w.Write([]byte(pageBody(page, 1, 20)))
		}

		res, err := f.client().FetchAll(ctx, reconcile.TypeContacts, reconcile.Query{})
		require.NoError(t, err)
		assert.Len(t, res.Batches, 20)
		assert.False(t, res.Truncated)
	})

	t.Run("forwards include sort and filters", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			q := r.URL.Query()
			assert.Equal(t, "/v4/42/sales_invoices", r.URL.Path)
			assert.Equal(t, "details,contact", q.Get("include"))
			assert.Equal(t, "-issue_date", q.Get("sort"))
			assert.Equal(t, "open", q.Get("filter[payment_status]"))
			_, _ = w.Write([]byte(`{"data":[],"meta":{"page_count":0}}`))
		}

		_, err := f.client().FetchAll(ctx, reconcile.TypeSalesInvoices, reconcile.Query{
			Include: []string{"details", "contact"},
			Sort:    "-issue_date",
			Filters: map[string]string{"payment_status": "open"},
		})
		require.NoError(t, err)
	})

	t.Run("missing credentials are a configuration error", func(t *testing.T) {
		f := newFakeAPI(t)
		cfg := f.config()
		cfg.CompanyID = ""
		cfg.Password = ""

		_, err := NewClient(cfg, nil).FetchAll(ctx, reconcile.TypeContacts, reconcile.Query{})
		require.ErrorIs(t, err, reconcile.ErrConfiguration)
		assert.Contains(t, err.Error(), "password, company_id")
		assert.Zero(t, f.tokenHits.Load())
	})

	t.Run("rejected credentials are an authentication error", func(t *testing.T) {
		f := newFakeAPI(t)
		f.tokenStatus = http.StatusUnauthorized

		_, err := f.client().FetchAll(ctx, reconcile.TypeContacts, reconcile.Query{})
		require.ErrorIs(t, err, reconcile.ErrAuthentication)
		assert.True(t, reconcile.IsFatal(err))
	})
}

func TestClient_TokenReuse(t *testing.T) {
	f := newFakeAPI(t)
	f.api = func(w http.ResponseWriter, r *http.Request, page int) {
		_, _ = w.Write([]byte(pageBody(page, 1, 1)))
	}
	c := f.client()

	for i := 0; i < 3; i++ {
		_, err := c.FetchAll(context.Background(), reconcile.TypeContacts, reconcile.Query{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.tokenHits.Load())
}

func TestClient_RefreshesRejectedToken(t *testing.T) {
	f := newFakeAPI(t)
	f.api = func(w http.ResponseWriter, r *http.Request, page int) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"type":"salaries","id":"5","attributes":{}}}`))
	}

	doc, err := f.client().FetchOne(context.Background(), reconcile.TypeSalaries, "5")
	require.NoError(t, err)
	assert.Equal(t, "5", doc.Primary.ID)
	assert.Equal(t, int32(2), f.tokenHits.Load())
}

func TestClient_FetchOne(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes primary and included with relationships", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			assert.Equal(t, "/v4/42/purchase_bills/77", r.URL.Path)
			assert.Equal(t, "payments", r.URL.Query().Get("include"))
			_, _ = w.Write([]byte(`{
				"data": {"type":"purchase_bills","id":"77","attributes":{"net_total":"100.0"},
					"relationships":{"payments":{"data":[{"type":"payments","id":9}]},"supplier":{"data":null}}},
				"included": [{"type":"payments","id":"9","attributes":{"amount":"40.5","date":"2024-03-01"},
					"relationships":{"account":{"data":{"type":"accounts","id":"3"}}}}]
			}`))
		}

		doc, err := f.client().FetchOne(ctx, reconcile.TypePurchaseBills, "77", "payments")
		require.NoError(t, err)

		pays := doc.Primary.Relationship("payments")
		assert.True(t, pays.Many)
		assert.Equal(t, []reconcile.Ref{{Type: "payments", ID: "9"}}, pays.Refs)
		_, ok := doc.Primary.RelatedID("supplier")
		assert.False(t, ok)

		require.Len(t, doc.Included, 1)
		accountID, ok := doc.Included[0].RelatedID("account")
		assert.True(t, ok)
		assert.Equal(t, "3", accountID)
	})

	t.Run("429 is rate limited", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			w.WriteHeader(http.StatusTooManyRequests)
		}

		_, err := f.client().FetchOne(ctx, reconcile.TypeSalaries, "1", "payments")
		require.Error(t, err)
		assert.True(t, IsRateLimited(err))
		assert.ErrorIs(t, err, reconcile.ErrTransport)

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, "/42/salaries/1", httpErr.Endpoint)
	})

	t.Run("404 is transport but not rate limited", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			w.WriteHeader(http.StatusNotFound)
		}

		_, err := f.client().FetchOne(ctx, reconcile.TypeTaxes, "1")
		assert.ErrorIs(t, err, reconcile.ErrTransport)
		assert.False(t, IsRateLimited(err))
	})

	t.Run("times out", func(t *testing.T) {
		f := newFakeAPI(t)
		f.api = func(w http.ResponseWriter, r *http.Request, page int) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}
		cfg := f.config()
		cfg.SingleTimeout = 20 * time.Millisecond

		_, err := NewClient(cfg, nil).FetchOne(ctx, reconcile.TypeTaxes, "1")
		assert.ErrorIs(t, err, reconcile.ErrTransport)
	})
}

func TestClient_TestConnection(t *testing.T) {
	f := newFakeAPI(t)
	c := f.client()

	require.NoError(t, c.TestConnection(context.Background()))
	require.NoError(t, c.TestConnection(context.Background()))
	assert.Equal(t, int32(2), f.tokenHits.Load(), "each test performs a fresh exchange")

	f.tokenStatus = http.StatusBadRequest
	assert.ErrorIs(t, c.TestConnection(context.Background()), reconcile.ErrAuthentication)
}
