package pricing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/archcost/internal/resource"
)

func retailItems(n int, prefix string) []retailItem {
	items := make([]retailItem, n)
	for i := range items {
		items[i] = retailItem{
			CurrencyCode:  "USD",
			RetailPrice:   0.1 * float64(i+1),
			ArmRegionName: "eastus",
			Location:      "US East",
			MeterName:     fmt.Sprintf("%s%d", prefix, i),
			SkuName:       "B2s",
			ArmSkuName:    "Standard_B2s",
			ServiceName:   "Virtual Machines",
			UnitOfMeasure: "1 Hour",
			Type:          "Consumption",
		}
	}
	return items
}

// pagedServer serves pages of retail items, linking each page to the next.
func pagedServer(t *testing.T, pages [][]retailItem) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		idx := 0
		if p := r.URL.Query().Get("page"); p != "" {
			_, _ = fmt.Sscanf(p, "%d", &idx)
		}
		page := retailPage{BillingCurrency: "USD", Items: pages[idx], Count: len(pages[idx])}
		if idx+1 < len(pages) {
			page.NextPageLink = fmt.Sprintf("%s/?page=%d", srv.URL, idx+1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFilterExpression(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{
			name: "region code",
			q:    Query{Service: "Virtual Machines", Region: "eastus"},
			want: "serviceName eq 'Virtual Machines' and armRegionName eq 'eastus' and priceType eq 'Consumption'",
		},
		{
			name: "location with sorted filters",
			q: Query{Service: "Storage", Region: "East US", ByLocation: true, Filters: map[string]string{
				"skuName": "Hot LRS", "meterName": "Hot LRS Data Stored",
			}},
			want: "serviceName eq 'Storage' and location eq 'East US' and priceType eq 'Consumption' and meterName eq 'Hot LRS Data Stored' and skuName eq 'Hot LRS'",
		},
		{
			name: "quotes escaped",
			q:    Query{Service: "O'Brien", Region: "eastus"},
			want: "serviceName eq 'O''Brien' and armRegionName eq 'eastus' and priceType eq 'Consumption'",
		},
		{
			name: "price type override",
			q:    Query{Service: "Virtual Machines", Region: "eastus", Filters: map[string]string{"priceType": "Reservation"}},
			want: "serviceName eq 'Virtual Machines' and armRegionName eq 'eastus' and priceType eq 'Reservation'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterExpression(tt.q))
		})
	}
}

func TestRetailClient_RequestURLEncodesSpaces(t *testing.T) {
	c := NewRetailClient(RetailConfig{BaseURL: "https://example.test/prices/"}, NewCache(time.Minute), zerolog.Nop())
	u := c.requestURL(Query{Service: "Virtual Machines", Region: "eastus"})
	assert.Contains(t, u, "https://example.test/prices?$filter=serviceName%20eq%20%27Virtual%20Machines%27")
	assert.NotContains(t, u, "+")
}

func TestRetailClient_FollowsPages(t *testing.T) {
	srv, hits := pagedServer(t, [][]retailItem{retailItems(3, "a"), retailItems(2, "b")})
	c := NewRetailClient(RetailConfig{BaseURL: srv.URL}, NewCache(time.Minute), zerolog.Nop())

	recs, err := c.Query(t.Context(), Query{Provider: resource.ProviderAzure, Service: "Virtual Machines", Region: "eastus"})
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, "a0", recs[0].MeterName)
	assert.Equal(t, "b1", recs[4].MeterName)
	assert.Equal(t, "Standard_B2s", recs[0].Attr("armSkuName"))
	assert.Equal(t, resource.ProviderAzure, recs[0].Provider)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))

	_, err = c.Query(t.Context(), Query{Provider: resource.ProviderAzure, Service: "Virtual Machines", Region: "eastus"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits), "second identical query is served from cache")
}

func TestRetailClient_Ceilings(t *testing.T) {
	t.Run("item ceiling", func(t *testing.T) {
		srv, hits := pagedServer(t, [][]retailItem{retailItems(4, "a"), retailItems(4, "b")})
		c := NewRetailClient(RetailConfig{BaseURL: srv.URL, MaxItems: 6}, NewCache(time.Minute), zerolog.Nop())
		q := Query{Provider: resource.ProviderAzure, Service: "Storage", Region: "eastus"}
		recs, err := c.Query(t.Context(), q)
		require.NoError(t, err)
		assert.Len(t, recs, 6)
		assert.Equal(t, int32(2), atomic.LoadInt32(hits))

		_, err = c.Query(t.Context(), q)
		require.NoError(t, err)
		assert.Equal(t, int32(4), atomic.LoadInt32(hits), "truncated results are not cached")
	})

	t.Run("item ceiling met exactly on last page", func(t *testing.T) {
		srv, hits := pagedServer(t, [][]retailItem{retailItems(3, "a"), retailItems(3, "b")})
		c := NewRetailClient(RetailConfig{BaseURL: srv.URL, MaxItems: 6}, NewCache(time.Minute), zerolog.Nop())
		q := Query{Provider: resource.ProviderAzure, Service: "Storage", Region: "eastus"}
		recs, err := c.Query(t.Context(), q)
		require.NoError(t, err)
		assert.Len(t, recs, 6)

		_, err = c.Query(t.Context(), q)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(hits), "complete results are cached")
	})

	t.Run("page ceiling", func(t *testing.T) {
		pages := make([][]retailItem, 5)
		for i := range pages {
			pages[i] = retailItems(1, fmt.Sprintf("p%d-", i))
		}
		srv, hits := pagedServer(t, pages)
		c := NewRetailClient(RetailConfig{BaseURL: srv.URL, MaxPages: 3}, NewCache(time.Minute), zerolog.Nop())
		q := Query{Provider: resource.ProviderAzure, Service: "Storage", Region: "eastus"}
		recs, err := c.Query(t.Context(), q)
		require.NoError(t, err)
		assert.Len(t, recs, 3)
		assert.Equal(t, int32(3), atomic.LoadInt32(hits))

		_, err = c.Query(t.Context(), q)
		require.NoError(t, err)
		assert.Equal(t, int32(6), atomic.LoadInt32(hits), "truncated results are not cached")
	})
}

func TestRetailClient_NonSuccessStatusIsEmpty(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewRetailClient(RetailConfig{BaseURL: srv.URL}, NewCache(time.Minute), zerolog.Nop())
	q := Query{Provider: resource.ProviderAzure, Service: "Virtual Machines", Region: "eastus"}

	recs, err := c.Query(t.Context(), q)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = c.Query(t.Context(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "degraded answers are not cached")
}

func TestRetailClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := NewRetailClient(RetailConfig{BaseURL: srv.URL}, NewCache(time.Minute), zerolog.Nop())
	_, err := c.Query(t.Context(), Query{Provider: resource.ProviderAzure, Service: "Storage", Region: "eastus"})
	assert.Error(t, err)
}

func TestRetailClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewRetailClient(RetailConfig{BaseURL: base}, NewCache(time.Minute), zerolog.Nop())
	_, err := c.Query(t.Context(), Query{Provider: resource.ProviderAzure, Service: "Storage", Region: "eastus"})
	assert.Error(t, err)
}
