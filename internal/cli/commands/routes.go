package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modkit-go/modkit/internal/app"
	"github.com/modkit-go/modkit/internal/cli/config"
	"github.com/modkit-go/modkit/internal/handler"
	"github.com/modkit-go/modkit/internal/web/middleware"
	"github.com/modkit-go/modkit/internal/web/router"
)

// NewRoutesCommand creates the routes command
func NewRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routes the configured modules would mount",
		Long:  "Scan the configured roots, load every module, and print the resulting routing table without starting a server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runRoutes(cmd, cfg)
		},
	}
}

func runRoutes(cmd *cobra.Command, cfg *config.Config) error {
	// Route listing is a dry run; keep log noise down.
	log := zap.NewNop()

	catalog := handler.NewCatalog()
	handler.RegisterBuiltins(catalog)

	table := middleware.NewTable()
	table.Register("request_id", middleware.RequestID()) //nolint:errcheck
	table.Register("logging", middleware.Logging(log))   //nolint:errcheck
	table.Register("recovery", middleware.Recovery(log)) //nolint:errcheck
	if cfg.Auth.Secret != "" {
		table.Register("auth", middleware.BearerAuth(cfg.Auth.Secret)) //nolint:errcheck
	}

	rtr := router.New(log, table, nil)

	application, err := app.New(app.Options{
		Roots:   cfg.Roots,
		Workdir: cfg.Workdir,
		Logger:  log,
		Catalog: catalog,
		Router:  rtr,
	})
	if err != nil {
		return err
	}

	report, err := application.Start(context.Background())
	if err != nil {
		return err
	}

	routes := rtr.Routes()
	if len(routes) == 0 {
		color.Yellow("No routes found (%d module(s) scanned)", report.Attempted)
		return nil
	}

	methodColor := color.New(color.FgGreen, color.Bold)
	patternColor := color.New(color.FgCyan)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATTERN\tCONTROLLER\tHANDLER\tMIDDLEWARE")
	for _, rt := range routes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			methodColor.Sprint(rt.Method),
			patternColor.Sprint(rt.Pattern),
			rt.Controller,
			rt.Handler,
			strings.Join(rt.Middleware, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	color.Green("\n%d route(s) from %d loaded module(s)", len(routes), report.Loaded)
	if report.Failed > 0 {
		color.Red("%d module(s) failed to load", report.Failed)
	}
	return nil
}
