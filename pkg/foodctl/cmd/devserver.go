package cmd

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vnfood/foodctl/pkg/cert"
	"github.com/vnfood/foodctl/pkg/devserver"
	"github.com/vnfood/foodctl/pkg/system"
	"github.com/vnfood/foodctl/pkg/telemetry"
	"github.com/vnfood/foodctl/pkg/version"
)

func NewDevServerCommand() *cobra.Command {
	cfg := devserver.DefaultConfig()
	var selfSignedDir string
	tracing := telemetry.Options{Exporter: "otlp", SamplingRate: 1.0}
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local API server for development",
		Long: "Run an in-memory stand-in for the food API. Users, tokens and history " +
			"are lost on exit. Recognition is deterministic and does not use a model.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if cfg.Secret == "" {
				cfg.Secret = os.Getenv("FOODCTL_DEVSERVER_SECRET")
			}
			cfg.Debug = rt.verbose
			log := system.NewServerLogger(rt.verbose)
			defer func() {
				_ = log.Sync()
			}()

			if selfSignedDir != "" {
				if cfg.TLSCertFile != "" {
					return errors.New("--tls-self-signed-dir cannot be combined with --tls-cert")
				}
				certs := cert.NewManager(selfSignedDir, certHosts(cfg.ListenAddress), cert.DefaultValidity, log.Sugar())
				if err := certs.Ensure(); err != nil {
					return err
				}
				cfg.TLSCertFile, cfg.TLSKeyFile = certs.CertFile(), certs.KeyFile()
				log.Sugar().Infow("Clients must trust the generated certificate", "ca-file", certs.CertFile())
			}

			tracing.ServiceVersion = version.Version
			tracing.Logger = log.Sugar()
			_, shutdownTracing, err := telemetry.Init(cmd.Context(), tracing)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdownTracing(context.WithoutCancel(cmd.Context())); err != nil {
					log.Sugar().Warnw("Failed to flush traces", "error", err)
				}
			}()

			srv, err := devserver.New(log, cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Listen(ctx)
		},
	}
	cmd.Flags().StringVar(&cfg.ListenAddress, "listen", cfg.ListenAddress, "Listen address")
	cmd.Flags().StringVar(&cfg.TLSCertFile, "tls-cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&cfg.TLSKeyFile, "tls-key", "", "TLS key file")
	cmd.Flags().StringVar(&cfg.Secret, "secret", "", "Token signing secret (default $FOODCTL_DEVSERVER_SECRET or random)")
	cmd.Flags().DurationVar(&cfg.AccessTTL, "access-ttl", devserver.DefaultAccessTTL, "Access token lifetime")
	cmd.Flags().DurationVar(&cfg.RefreshTTL, "refresh-ttl", devserver.DefaultRefreshTTL, "Refresh token lifetime")
	cmd.Flags().StringVar(&cfg.WebRoot, "web-root", "", "Directory with a frontend build to serve")
	cmd.Flags().StringSliceVar(&cfg.CORSOrigins, "cors-origin", nil, "Allowed CORS origins")
	cmd.Flags().BoolVar(&cfg.DisableRateLimit, "no-rate-limit", false, "Disable rate limiting")
	cmd.Flags().StringSliceVar(&cfg.Audit.KafkaBrokers, "audit-kafka-broker", nil, "Kafka brokers receiving audit events")
	cmd.Flags().StringVar(&cfg.Audit.KafkaTopic, "audit-kafka-topic", devserver.DefaultAuditTopic, "Kafka topic for audit events")
	cmd.Flags().BoolVar(&tracing.Enabled, "otel-enabled", false, "Enable OpenTelemetry tracing")
	cmd.Flags().StringVar(&tracing.Exporter, "otel-exporter", tracing.Exporter, "Trace exporter: otlp, stdout or none")
	cmd.Flags().StringVar(&tracing.Endpoint, "otel-endpoint", "", "OTLP gRPC collector endpoint")
	cmd.Flags().BoolVar(&tracing.Insecure, "otel-insecure", false, "Disable TLS for the OTLP connection")
	cmd.Flags().Float64Var(&tracing.SamplingRate, "otel-sampling-rate", tracing.SamplingRate, "Fraction of traces to sample")
	cmd.Flags().StringVar(&selfSignedDir, "tls-self-signed-dir", "", "Serve TLS with a self-signed certificate kept in this directory")
	return cmd
}

// certHosts lists the names a self-signed certificate for addr must cover.
func certHosts(addr string) []string {
	hosts := []string{"localhost", "127.0.0.1"}
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" || host == "localhost" || host == "127.0.0.1" {
		return hosts
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return hosts
	}
	return append(hosts, host)
}
