package cli

import (
	"fmt"

	"cvinsight/internal/export"
	"cvinsight/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report server",
	Long: `Start the single page report server.

Endpoints:
- GET  /: upload form and the current report
- POST /process: submit a resume (multipart pdf_doc + api_key)
- POST /clear: clear the current report and error
- GET  /export.json, /export.pdf: download the report
- GET  /api/report, /api/chart: report data as JSON (API key when configured)
- GET  /health, /stats: service status

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled or server
- Use --cert-file and --key-file for the server certificate; changes to the
  files are picked up without a restart`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled or server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	overrideString(cmd, "port", &cfg.Server.Port)
	overrideString(cmd, "host", &cfg.Server.Host)
	overrideString(cmd, "tls-mode", &cfg.Server.TLS.Mode)
	overrideString(cmd, "cert-file", &cfg.Server.TLS.CertFile)
	overrideString(cmd, "key-file", &cfg.Server.TLS.KeyFile)

	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	comps, err := newComponents(cmd.Context(), cfg, logger, componentOptions{telemetry: true, persistent: true})
	if err != nil {
		return err
	}
	defer comps.Close()

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: server.RequestLimit(cfg.App.MaxFileSize),
		RateLimit:      &cfg.Server.RateLimit,
		SessionCookie:  cfg.Server.SessionCookie,
		Controller:     comps.controller,
		Backend:        comps.client,
		Renderer:       export.NewSnapshotter(cfg.Export.Snapshot),
		StoreName:      cfg.Store.Backend,
		Observability:  comps.obs,
	}
	return server.NewServer(cfg, serverCfg, logger).Start(cmd.Context())
}
