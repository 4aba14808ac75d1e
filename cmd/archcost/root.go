package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/archcost/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliState is shared by all subcommands once the root pre-run has loaded the
// configuration.
type cliState struct {
	cfgFile  string
	logLevel string
	cfg      config.Config
	logger   zerolog.Logger
}

func newRootCmd() *cobra.Command {
	st := &cliState{}
	root := &cobra.Command{
		Use:           "archcost",
		Short:         "Itemized monthly cost estimates for cloud architectures",
		Long:          "archcost turns free text, flowchart diagrams and Terraform into an itemized\nmonthly cost estimate priced against public cloud price catalogs.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(st.cfgFile)
			if err != nil {
				return err
			}
			if st.logLevel != "" {
				cfg.Log.Level = st.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			st.cfg = cfg
			st.logger = newLogger(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&st.cfgFile, "config", "", "path to a YAML configuration file")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(st),
		newEstimateCmd(st),
		newSanitizeCmd(st),
		newCatalogCmd(st),
	)
	return root
}
