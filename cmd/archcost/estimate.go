package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/archcost/internal/diagram"
	"github.com/rshade/archcost/internal/generate"
	"github.com/rshade/archcost/internal/normalize"
	"github.com/rshade/archcost/internal/resource"
)

func newEstimateCmd(st *cliState) *cobra.Command {
	var (
		in          normalize.Input
		provider    string
		diagramFile string
		iacFile     string
		output      string
	)
	cmd := &cobra.Command{
		Use:   "estimate [free text...]",
		Short: "Estimate the monthly cost of an architecture",
		Example: `  archcost estimate "web app with frontend and backend, mssql database, 50 GB"
  archcost estimate --iac main.tf --region westeurope --output yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			if len(args) > 0 {
				in.FreeText = strings.TrimSpace(in.FreeText + " " + strings.Join(args, " "))
			}
			if provider != "" {
				p, ok := resource.ParseProvider(provider)
				if !ok {
					return fmt.Errorf("%w: %q", resource.ErrUnknownProvider, provider)
				}
				in.Provider = p
			}

			var err error
			if in.DiagramSource, err = readSource(diagramFile, cmd.InOrStdin()); err != nil {
				return fmt.Errorf("read diagram: %w", err)
			}
			if in.IaCSource, err = readSource(iacFile, cmd.InOrStdin()); err != nil {
				return fmt.Errorf("read iac: %w", err)
			}
			if strings.TrimSpace(in.FreeText+in.DiagramSource+in.IaCSource) == "" {
				return fmt.Errorf("nothing to estimate: give free text, --diagram or --iac")
			}
			if strings.TrimSpace(in.DiagramSource) != "" {
				in.DiagramSource = diagram.Sanitize(generate.StripFences(in.DiagramSource))
			}

			a, err := newApp(cmd.Context(), st.cfg, st.logger)
			if err != nil {
				return err
			}
			items := a.normalizer.Normalize(cmd.Context(), in)
			est := a.aggregator.Price(cmd.Context(), items)
			return renderEstimate(cmd.OutOrStdout(), est, output)
		},
	}
	cmd.Flags().StringVar(&in.FreeText, "text", "", "free-text description")
	cmd.Flags().StringVar(&diagramFile, "diagram", "", "flowchart source file (- for stdin)")
	cmd.Flags().StringVar(&iacFile, "iac", "", "Terraform source file (- for stdin)")
	cmd.Flags().StringVar(&in.Region, "region", "", "region override")
	cmd.Flags().StringVar(&provider, "provider", "", "provider override (azure, aws, gcp)")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table, json, yaml)")
	return cmd
}
