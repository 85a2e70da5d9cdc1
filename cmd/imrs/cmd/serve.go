package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"imrs-backend/internal/components/serviceutil"
	"imrs-backend/internal/components/telemetry"
	"imrs-backend/internal/notify"
	"imrs-backend/internal/server"

	"github.com/spf13/cobra"
)

func init() {
	flags := serveCmd.Flags()
	flags.StringP("addr", "a", "", "address to listen on (default from config, ::1)")
	flags.IntP("port", "p", 0, "port to listen on (default from config, 8080)")
	flags.String("static-dir", "", "directory holding the web UI")
	flags.String("url-prefix", "", "public base url used in chat responses")
	flags.String("dump-http", "", "write every outbound HTTP exchange into this directory")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the rating charts over HTTP.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		cfg := config
		if flags.Changed("addr") {
			cfg.Addr, _ = flags.GetString("addr")
		}
		if flags.Changed("port") {
			cfg.Port, _ = flags.GetInt("port")
		}
		if flags.Changed("static-dir") {
			cfg.StaticDir, _ = flags.GetString("static-dir")
		}
		if flags.Changed("url-prefix") {
			cfg.UrlPrefix, _ = flags.GetString("url-prefix")
		}
		dumpDir, _ := flags.GetString("dump-http")

		return serve(serviceutil.SignalContext(), cfg, dumpDir)
	},
}

func serve(ctx context.Context, cfg Config, dumpDir string) error {
	var tel telemetry.API = telemetry.SlogAPI{}

	otelTel, err := telemetry.Setup(ctx, "imrs", cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otelTel.Shutdown(shutdownCtx)
		if err != nil {
			tel.ReportWarning("telemetry.shutdown", err)
		}
	}()
	if cfg.Telemetry.Enabled() {
		telemetry.InstrumentPerfStats(ctx, tel)
	}

	dump, err := dumpOutput(dumpDir)
	if err != nil {
		return fmt.Errorf("dump http: %w", err)
	}
	cache, err := newRatingCache(cfg, tel, dump)
	if err != nil {
		return err
	}

	srv := server.NewServer(
		ctx,
		cache,
		notify.NewSlack(30*time.Second, tel),
		server.Options{
			Width:     cfg.Image.Width,
			Height:    cfg.Image.Height,
			UrlPrefix: cfg.UrlPrefix,
			StaticDir: cfg.StaticDir,
		},
		tel,
	)

	addr := net.JoinHostPort(cfg.Addr, strconv.Itoa(cfg.Port))
	slog.Info("starting server", "addr", addr, "static_dir", cfg.StaticDir, "url_prefix", cfg.UrlPrefix)
	err = serviceutil.StartHttpServer(ctx, addr, srv.Router())
	srv.Wait()
	return err
}
