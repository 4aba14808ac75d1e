package pricing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/archcost/internal/resource"
)

type stubCatalog struct {
	records []Record
	queries []Query
}

func (s *stubCatalog) Query(_ context.Context, q Query) ([]Record, error) {
	s.queries = append(s.queries, q)
	return s.records, nil
}

func TestQuerySignature(t *testing.T) {
	a := Query{Service: "Storage ", Region: "eastus", Filters: map[string]string{"SkuName": " Hot LRS", "meterName": "Data Stored"}}
	b := Query{Service: "Storage", Region: "eastus", Filters: map[string]string{"meterName": "Data Stored", "skuname": "Hot LRS"}}

	assert.Equal(t, a.Signature(), b.Signature())
	assert.Equal(t, "service=Storage;region=eastus;metername=Data Stored;skuname=Hot LRS", a.Signature())

	loc := Query{Service: "Storage", Region: "East US", ByLocation: true}
	assert.Equal(t, "service=Storage;location=East US", loc.Signature())

	az := Query{Provider: resource.ProviderAzure, Service: "Storage", Region: "eastus"}
	aws := Query{Provider: resource.ProviderAWS, Service: "Storage", Region: "eastus"}
	assert.NotEqual(t, az.cacheKey(), aws.cacheKey())
}

func TestRouter(t *testing.T) {
	azure := &stubCatalog{records: []Record{{MeterName: "B2s"}}}
	r := NewRouter(zerolog.Nop())
	r.Register(resource.ProviderAzure, azure)

	recs, err := r.Query(t.Context(), Query{Provider: resource.ProviderAzure, Service: "Virtual Machines"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Len(t, azure.queries, 1)

	recs, err = r.Query(t.Context(), Query{Provider: resource.ProviderGCP, Service: "Compute Engine"})
	require.NoError(t, err)
	assert.Empty(t, recs)

	assert.Equal(t, []resource.Provider{resource.ProviderAzure}, r.Providers())
}
