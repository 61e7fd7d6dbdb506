package main

import (
	"github.com/spf13/cobra"

	"github.com/menta2k/shot-analyzer/internal/config"
	"github.com/menta2k/shot-analyzer/internal/logging"
	"github.com/menta2k/shot-analyzer/internal/server"
	"github.com/menta2k/shot-analyzer/internal/utils"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
				return err
			}

			a, closer := newAnalyzer(cfg)
			defer closer.Close()

			srv := server.New(a, cfg.Server, cfg.Output.Dir, logging.WithComponent("server"))
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
