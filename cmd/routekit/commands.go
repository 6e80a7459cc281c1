package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"routekit/internal/app"
	"routekit/internal/config"
	"routekit/internal/infrastructure"
	"routekit/internal/routing"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "routekit",
		Short:         "Declarative HTTP and WebSocket routing server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newOpenAPICmd(),
		newRoutesCmd(),
		newVersionCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server until SIGINT or SIGTERM; SIGHUP reloads the controllers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer infrastructure.CloseLogFile()

			stop := reloadOnHangup(ctx, a)
			defer stop()

			return a.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides ROUTEKIT_SERVER_PORT)")
	return cmd
}

// reloadOnHangup reloads a's controllers on every SIGHUP until the returned
// stop function is called.
func reloadOnHangup(ctx context.Context, a *app.Application) func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-hup:
				if err := a.Reload(ctx); err != nil {
					a.Logger.ErrorContext(ctx, "Reload failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	return func() {
		signal.Stop(hup)
		close(done)
	}
}

// offlineApp builds the application without telemetry exporters, logging to w.
func offlineApp(ctx context.Context, w io.Writer) (*app.Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "none"

	logger := infrastructure.NewLoggerWithWriter(w, cfg.Logging.Format, &slog.HandlerOptions{Level: slog.LevelWarn})
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newOpenAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "openapi",
		Short: "Print the Swagger 2.0 document of the built-in controllers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := offlineApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer routing.CleanUp(nil, a.Server)

			doc, err := a.Docs.JSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return err
		},
	}
}

func newRoutesCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the declared routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			routes := routing.Declared()

			switch out {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(routes)
			case "text":
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CONTROLLER\tKIND\tVERB\tPATTERNS\tHANDLER")
				for _, r := range routes {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						r.Controller, r.Kind, r.Verb, strings.Join(r.Patterns, ","), r.Handler)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown output format %q (want text or json)", out)
			}
		},
	}

	cmd.Flags().StringVar(&out, "out", "text", "output format: text|json")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s", app.AppName, app.Version)
			if app.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", app.Commit)
			}
			if app.BuildTime != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " built %s", app.BuildTime)
			}
			fmt.Fprintln(cmd.OutOrStdout())
		},
	}
}
