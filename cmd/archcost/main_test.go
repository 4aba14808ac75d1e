package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rshade/archcost/internal/config"
	"github.com/rshade/archcost/internal/estimate"
	"github.com/rshade/archcost/internal/pricing"
	"github.com/rshade/archcost/internal/resource"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

// unavailableCatalog points the retail catalog at a server that always fails.
func unavailableCatalog(t *testing.T) *atomic.Int32 {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("ARCHCOST_PRICING_RETAIL_BASE_URL", srv.URL)
	return &hits
}

func TestSanitizeCmd(t *testing.T) {
	out, err := runCLI(t, "```mermaid\nGRAPH lr\nA[Web] --> B[Db]\n```", "sanitize")
	require.NoError(t, err)
	assert.Equal(t, "graph LR\nA[Web] --> B[Db];\n", out)
}

func TestSanitizeCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.mmd")
	require.NoError(t, os.WriteFile(path, []byte("graph TD\nA-->B"), 0o600))

	out, err := runCLI(t, "", "sanitize", path)
	require.NoError(t, err)
	assert.Equal(t, "graph TD\nA-->B;\n", out)
}

func TestSanitizeCmd_Strict(t *testing.T) {
	_, err := runCLI(t, "I cannot draw that.", "sanitize", "--strict")
	assert.Error(t, err)
}

func TestEstimateCmd_CatalogUnavailable(t *testing.T) {
	hits := unavailableCatalog(t)

	out, err := runCLI(t, "", "estimate", "-o", "json",
		"web app with frontend and backend, mssql database, 50 GB")
	require.NoError(t, err)

	var est estimate.Estimate
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	require.Len(t, est.Lines, 2)
	assert.Equal(t, resource.AppService, est.Lines[0].Item.Service)
	assert.Equal(t, 2, est.Lines[0].Item.Quantity)
	assert.Equal(t, resource.ManagedSQL, est.Lines[1].Item.Service)
	require.NotNil(t, est.Lines[1].Item.SizeGB)
	assert.InDelta(t, 50.0, *est.Lines[1].Item.SizeGB, 1e-9)
	assert.Zero(t, est.Total)
	assert.Contains(t, est.Notes, "2 of 2 items could not be priced")
	assert.Positive(t, hits.Load())
}

func TestEstimateCmd_IaCYAML(t *testing.T) {
	unavailableCatalog(t)
	path := filepath.Join(t.TempDir(), "main.tf")
	require.NoError(t, os.WriteFile(path, []byte(`
resource "azurerm_linux_virtual_machine" "web" {
  location = "westeurope"
  size     = "Standard_D2s_v3"
  count    = 3
}
`), 0o600))

	out, err := runCLI(t, "", "estimate", "--iac", path, "-o", "yaml")
	require.NoError(t, err)

	var est estimate.Estimate
	require.NoError(t, yaml.Unmarshal([]byte(out), &est))
	require.Len(t, est.Lines, 1)
	assert.Equal(t, "Standard_D2s_v3", est.Lines[0].Item.SKU)
	assert.Equal(t, "westeurope", est.Lines[0].Item.Region)
	assert.Equal(t, 3, est.Lines[0].Item.Quantity)
}

func TestEstimateCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "nothing to estimate", args: []string{"estimate"}},
		{name: "bad output", args: []string{"estimate", "-o", "xml", "vm"}},
		{name: "bad provider", args: []string{"estimate", "--provider", "oci", "vm"}},
		{name: "missing file", args: []string{"estimate", "--iac", "/nonexistent/main.tf"}},
		{name: "bad config", args: []string{"--config", "/nonexistent/archcost.yaml", "estimate", "vm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCatalogCmd(t *testing.T) {
	var gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("$filter")
		_, _ = w.Write([]byte(`{"BillingCurrency":"USD","Items":[{"currencyCode":"USD","retailPrice":0.0416,"unitPrice":0.0416,"armRegionName":"eastus","meterName":"B2s","productName":"Virtual Machines BS Series","skuName":"B2s","serviceName":"Virtual Machines","unitOfMeasure":"1 Hour","type":"Consumption","armSkuName":"Standard_B2s"}],"NextPageLink":""}`))
	}))
	defer srv.Close()
	t.Setenv("ARCHCOST_PRICING_RETAIL_BASE_URL", srv.URL)

	out, err := runCLI(t, "", "catalog", "--service", "Virtual Machines", "--region", "eastus",
		"--sku", "Standard_B2s", "--field", "armSkuName")
	require.NoError(t, err)

	assert.Contains(t, gotFilter, "armSkuName eq 'Standard_B2s'")
	var records []pricing.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.InDelta(t, 0.0416, records[0].UnitPrice, 1e-9)
}

func TestCatalogCmd_SKUNeedsField(t *testing.T) {
	_, err := runCLI(t, "", "catalog", "--service", "x", "--region", "y", "--sku", "z")
	assert.Error(t, err)
}

func TestNewApp_GeneratorOptional(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := newApp(t.Context(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, a.generator)
	assert.Nil(t, a.serverDeps().Architect)
	assert.Equal(t, []resource.Provider{resource.ProviderAWS, resource.ProviderAzure}, a.catalog.Providers())

	cfg.Generate.Endpoint = "https://example.invalid"
	cfg.Generate.APIKey = "k"
	cfg.Generate.Deployment = "gpt"
	a, err = newApp(t.Context(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, a.generator)
	assert.NotNil(t, a.serverDeps().Architect)
}

func TestNewApp_OfferClientUsesConfiguredTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Pricing.OfferBaseURL = srv.URL
	cfg.Pricing.OfferHTTPTimeout = 50 * time.Millisecond

	a, err := newApp(t.Context(), cfg, zerolog.Nop())
	require.NoError(t, err)

	start := time.Now()
	_, err = a.catalog.Query(t.Context(), pricing.Query{Provider: resource.ProviderAWS, Service: "AmazonEC2", Region: "us-east-1"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}

func TestRenderEstimate(t *testing.T) {
	size := 50.0
	est := estimate.Estimate{
		Currency: "USD",
		Total:    121.47,
		Notes:    []string{"1 of 2 items could not be priced"},
		Lines: []estimate.Line{
			{Item: resource.Item{Provider: resource.ProviderAzure, Service: resource.AppService, SKU: "P1v3", Quantity: 2, Region: "eastus"}, UnitMonthlyPrice: 60.74, MonthlyPrice: 121.47},
			{Item: resource.Item{Provider: resource.ProviderAzure, Service: resource.ManagedSQL, SKU: "S0", Quantity: 1, Region: "eastus", SizeGB: &size}, Notes: []string{"managed_sql \"S0\" not found"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, renderEstimate(&buf, est, formatTable))
	table := buf.String()
	for _, want := range []string{"SERVICE", "app_service", "P1v3", "60.74", "121.47", "Total: 121.47 USD/month", "1 of 2 items could not be priced", "not found"} {
		assert.Contains(t, table, want)
	}

	buf.Reset()
	require.NoError(t, renderEstimate(&buf, est, formatJSON))
	assert.Contains(t, buf.String(), `"totalEstimate": 121.47`)

	buf.Reset()
	require.NoError(t, renderEstimate(&buf, est, formatYAML))
	assert.Contains(t, buf.String(), "totalEstimate: 121.47")
	assert.Contains(t, buf.String(), "sizeGB: 50")
}
