package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpGoServer "github.com/mark3labs/mcp-go/server"
	"github.com/sourcegraph/conc"
	"github.com/spf13/pflag"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i2y/misperer/configs"
	"github.com/i2y/misperer/internal/adapter/inbound/mcphttp"
	"github.com/i2y/misperer/internal/adapter/outbound/mispclient"
	"github.com/i2y/misperer/internal/usecase"
)

const (
	serverName    = "misperer"
	serverVersion = "0.1.0"
	probeTimeout  = 15 * time.Second
)

func main() {
	// === Command Line Flags ===
	var transport, envFile string
	flags := pflag.NewFlagSet(serverName, pflag.ExitOnError)
	flags.StringVar(&transport, "transport", "stdio", "Transport mode: stdio or sse")
	flags.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// === Logging ===
	// stdout carries the protocol in stdio mode, so logs never go there.
	logLevel := cfg.ParsedLogLevel()
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", cfg.LogFile, err)
			os.Exit(1)
		}
		defer logFile.Close()
		logOut = logFile
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", logLevel.String()), slog.String("transport", transport))

	if err := run(ctx, stop, cfg, transport, logger); err != nil {
		logger.Error("Server stopped with error.", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "misperer: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *configs.Config, transport string, logger *slog.Logger) error {
	if transport != "stdio" && transport != "sse" {
		return fmt.Errorf("invalid transport mode %q (want stdio or sse)", transport)
	}

	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		return fmt.Errorf("initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Platform client ===
	httpClient := mispclient.NewHTTPClient(cfg.VerifyCert(), cfg.HTTPClientTimeout)
	if !cfg.VerifyCert() {
		logger.Warn("TLS certificate verification of the MISP instance is disabled.")
	}
	client, err := mispclient.New(cfg.MISPURL, cfg.MISPKey, httpClient, logger)
	if err != nil {
		return fmt.Errorf("create MISP client: %w", err)
	}
	probeCtx, cancelProbe := context.WithTimeout(ctx, probeTimeout)
	version, err := client.Version(probeCtx)
	cancelProbe()
	if err != nil {
		return fmt.Errorf("reach MISP at %s: %w", cfg.MISPURL, err)
	}
	logger.Info("Connected to MISP.", slog.String("url", cfg.MISPURL), slog.String("misp_version", version))

	// === Use Cases ===
	catalog, err := usecase.NewCatalog(usecase.CatalogOptions{ReadOnly: cfg.ReadOnly})
	if err != nil {
		return fmt.Errorf("build tool catalog: %w", err)
	}
	serveUC := usecase.NewServeToolsUseCase(catalog, logger)
	invokeUC := usecase.NewInvokeToolUseCase(catalog, client, logger)

	// === MCP Server (mark3labs/mcp-go) ===
	mcpSrv := mcpGoServer.NewMCPServer(
		serverName,
		serverVersion,
		mcpGoServer.WithToolCapabilities(false),
		mcpGoServer.WithRecovery(),
	)
	registerUC := usecase.NewRegisterToolsUseCase(serveUC, invokeUC, mcpSrv, logger)
	if err := registerUC.Execute(ctx); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	logger.Info("MCP server initialized.", slog.Int("tool_count", catalog.Len()), slog.Bool("read_only", cfg.ReadOnly))

	// === Transport Mode Selection ===
	if transport == "stdio" {
		logger.Info("Starting in STDIO mode")
		stdioServer := mcpGoServer.NewStdioServer(mcpSrv)
		if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		logger.Info("STDIO stream closed.")
		return nil
	}

	return serveSSE(ctx, stop, cfg, mcpSrv, mcphttp.NewHandlers(serveUC, invokeUC, client, logger), logger)
}

// serveSSE runs the MCP SSE server and the admin HTTP server until ctx is done.
func serveSSE(
	ctx context.Context,
	stop context.CancelFunc,
	cfg *configs.Config,
	mcpSrv *mcpGoServer.MCPServer,
	adminHandlers *mcphttp.Handlers,
	logger *slog.Logger,
) error {
	logger.Info("Starting in SSE mode")
	// The HTTP server exists before Start so an early Shutdown still stops it.
	sseHTTP := &http.Server{
		Addr:        cfg.ListenAddr,
		ReadTimeout: cfg.ServerReadTimeout,
		IdleTimeout: cfg.ServerIdleTimeout,
	}
	sseServer := mcpGoServer.NewSSEServer(mcpSrv,
		mcpGoServer.WithBaseURL("http://"+cfg.ListenAddr),
		mcpGoServer.WithHTTPServer(sseHTTP),
	)
	sseHTTP.Handler = sseServer

	adminMux := http.NewServeMux()
	adminHandlers.RegisterAdminRoutes(adminMux)
	adminServer := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      adminMux,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	var wg conc.WaitGroup
	var adminErr, sseErr error
	wg.Go(func() {
		logger.Info("Admin HTTP server starting.", slog.String("address", adminServer.Addr))
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Admin HTTP server failed.", slog.Any("error", err))
			adminErr = fmt.Errorf("admin server: %w", err)
			stop()
		}
	})
	wg.Go(func() {
		logger.Info("MCP SSE server starting.", slog.String("address", cfg.ListenAddr))
		if err := sseServer.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("MCP SSE server failed.", slog.Any("error", err))
			sseErr = fmt.Errorf("sse server: %w", err)
			stop()
		}
	})

	// Wait for interrupt signal or a failing server.
	<-ctx.Done()

	logger.Info("Shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Admin HTTP server graceful shutdown failed.", slog.Any("error", err))
	}
	if err := sseServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("MCP SSE server graceful shutdown failed.", slog.Any("error", err))
	}
	wg.Wait()

	if err := errors.Join(adminErr, sseErr); err != nil {
		return err
	}
	logger.Info("Servers shut down gracefully.")
	return nil
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP trace and
// metric exporters over one gRPC connection.
// It returns a shutdown function to be called on application exit.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing and metrics disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	grpcOpts := []grpc.DialOption{}
	if cfg.OtelExporterOtlpInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		slog.Warn("Using insecure connection for OTLP exporter.")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serverName),
			semconv.ServiceVersionKey.String(serverVersion),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(r),
	)
	otel.SetMeterProvider(mp)

	slog.Info("OpenTelemetry TracerProvider and MeterProvider configured.")

	return func(ctx context.Context) error {
		providerErr := tp.Shutdown(ctx)
		meterErr := mp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(providerErr, meterErr, connErr)
	}, nil
}
