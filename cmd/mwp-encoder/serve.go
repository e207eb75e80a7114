package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/lab/mwp-encoder/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the labeling API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			constants, err := a.cfg.ConstantTable()
			if err != nil {
				return err
			}
			gin.SetMode(a.cfg.Server.GinMode)
			s := server.New(server.Options{
				Constants:        constants,
				Tolerance:        a.cfg.Tolerance(),
				AllowReplacement: a.cfg.Labeling.AllowReplacement,
				Logger:           a.logger,
			})
			return s.Run(cmd.Context(), a.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	return cmd
}
