package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/archcost/internal/pricing"
	"github.com/rshade/archcost/internal/resource"
)

func newCatalogCmd(st *cliState) *cobra.Command {
	var (
		provider, service, region, sku, field, output string
		byLocation                                    bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query a price catalog directly",
		Example: `  archcost catalog --service "Virtual Machines" --region eastus --sku Standard_B2s --field armSkuName
  archcost catalog --provider aws --service AmazonEC2 --region us-east-1 --sku t3.micro --field instanceType`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == formatTable {
				output = formatJSON
			}
			if err := checkFormat(output); err != nil {
				return err
			}
			p, ok := resource.ParseProvider(provider)
			if !ok {
				return fmt.Errorf("%w: %q", resource.ErrUnknownProvider, provider)
			}
			q := pricing.Query{Provider: p, Service: service, Region: region, ByLocation: byLocation}
			if sku != "" {
				if field == "" {
					return fmt.Errorf("--field is required with --sku")
				}
				q.Filters = map[string]string{field: sku}
			}

			a, err := newApp(cmd.Context(), st.cfg, st.logger)
			if err != nil {
				return err
			}
			records, err := a.catalog.Query(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("query catalog: %w", err)
			}
			if records == nil {
				records = []pricing.Record{}
			}
			return render(cmd.OutOrStdout(), records, output)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", string(resource.ProviderAzure), "catalog provider (azure, aws)")
	cmd.Flags().StringVar(&service, "service", "", "catalog service name or offer code")
	cmd.Flags().StringVar(&region, "region", "", "region code, or location name with --by-location")
	cmd.Flags().BoolVar(&byLocation, "by-location", false, "treat --region as a display location name")
	cmd.Flags().StringVar(&sku, "sku", "", "SKU value to match")
	cmd.Flags().StringVar(&field, "field", "", "catalog field the SKU is matched against")
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "output format (json, yaml)")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}
