package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/archcost/internal/resource"
)

const rdsPriceListEntry = `{
  "product": {
    "sku": "RDS1",
    "productFamily": "Database Instance",
    "attributes": {
      "servicecode": "AmazonRDS",
      "regionCode": "us-east-1",
      "location": "US East (N. Virginia)",
      "instanceType": "db.t3.medium",
      "databaseEngine": "PostgreSQL",
      "deploymentOption": "Single-AZ"
    }
  },
  "terms": {
    "OnDemand": {
      "RDS1.JRTCKXETXF": {
        "offerTermCode": "JRTCKXETXF",
        "priceDimensions": {
          "RDS1.JRTCKXETXF.6YS6EN2CT7": {
            "description": "$0.072 per RDS db.t3.medium Single-AZ instance hour",
            "unit": "Hrs",
            "beginRange": "0",
            "pricePerUnit": {"USD": "0.0720000000"}
          }
        }
      }
    }
  }
}`

// mockProductsAPI records inputs and serves canned pages.
type mockProductsAPI struct {
	pages  []*awspricing.GetProductsOutput
	err    error
	inputs []*awspricing.GetProductsInput
}

func (m *mockProductsAPI) GetProducts(_ context.Context, in *awspricing.GetProductsInput, _ ...func(*awspricing.Options)) (*awspricing.GetProductsOutput, error) {
	cp := *in
	m.inputs = append(m.inputs, &cp)
	if m.err != nil {
		return nil, m.err
	}
	return m.pages[len(m.inputs)-1], nil
}

func TestProductsAPIClient_Paginates(t *testing.T) {
	api := &mockProductsAPI{pages: []*awspricing.GetProductsOutput{
		{PriceList: []string{rdsPriceListEntry}, NextToken: aws.String("t1")},
		{PriceList: []string{rdsPriceListEntry}},
	}}
	c := NewProductsAPIClient(api, 0, 0, NewCache(time.Minute), zerolog.Nop())

	recs, err := c.Query(t.Context(), Query{
		Provider: resource.ProviderAWS,
		Service:  "AmazonRDS",
		Region:   "us-east-1",
		Filters:  map[string]string{"instanceType": "db.t3.medium", "deploymentOption": "Single-AZ"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.InDelta(t, 0.072, recs[0].UnitPrice, 1e-9)
	assert.Equal(t, "db.t3.medium", recs[0].SKUName)

	require.Len(t, api.inputs, 2)
	assert.Nil(t, api.inputs[0].NextToken)
	assert.Equal(t, "t1", aws.ToString(api.inputs[1].NextToken))

	filters := api.inputs[0].Filters
	require.Len(t, filters, 3)
	assert.Equal(t, "regionCode", aws.ToString(filters[0].Field))
	assert.Equal(t, "deploymentOption", aws.ToString(filters[1].Field))
	assert.Equal(t, "instanceType", aws.ToString(filters[2].Field))
	for _, f := range filters {
		assert.Equal(t, pricingtypes.FilterTypeTermMatch, f.Type)
	}
}

func TestProductsAPIClient_Errors(t *testing.T) {
	t.Run("api failure", func(t *testing.T) {
		c := NewProductsAPIClient(&mockProductsAPI{err: errors.New("denied")}, 0, 0, NewCache(time.Minute), zerolog.Nop())
		_, err := c.Query(t.Context(), Query{Provider: resource.ProviderAWS, Service: "AmazonRDS", Region: "us-east-1"})
		assert.Error(t, err)
	})

	t.Run("malformed entry", func(t *testing.T) {
		api := &mockProductsAPI{pages: []*awspricing.GetProductsOutput{{PriceList: []string{"{"}}}}
		c := NewProductsAPIClient(api, 0, 0, NewCache(time.Minute), zerolog.Nop())
		_, err := c.Query(t.Context(), Query{Provider: resource.ProviderAWS, Service: "AmazonRDS", Region: "us-east-1"})
		assert.Error(t, err)
	})
}

func TestProductsAPIClient_ItemCeiling(t *testing.T) {
	api := &mockProductsAPI{pages: []*awspricing.GetProductsOutput{
		{PriceList: []string{rdsPriceListEntry, rdsPriceListEntry, rdsPriceListEntry}},
	}}
	c := NewProductsAPIClient(api, 2, 0, NewCache(time.Minute), zerolog.Nop())
	recs, err := c.Query(t.Context(), Query{Provider: resource.ProviderAWS, Service: "AmazonRDS", Region: "us-east-1"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
