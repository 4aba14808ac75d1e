package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rshade/archcost/internal/diagram"
	"github.com/rshade/archcost/internal/generate"
)

func newSanitizeCmd(_ *cliState) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "sanitize [file]",
		Short: "Repair flowchart source read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readSource(path, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read diagram: %w", err)
			}
			raw = generate.StripFences(raw)

			out := diagram.Sanitize(raw)
			if strict {
				if out, err = diagram.SanitizeStrict(raw); err != nil {
					return err
				}
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the input is not a flowchart")
	return cmd
}
