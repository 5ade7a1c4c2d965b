package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"valerie/handler"
	"valerie/internal/integrations/openai"
	"valerie/internal/integrations/paramstore"
	"valerie/internal/integrations/polly"
	"valerie/internal/scrape"
	"valerie/internal/telemetry"
	"valerie/internal/usecase"
	"valerie/internal/webui"
)

func main() {
	ctx := context.Background()

	// ---- Logging / telemetry ----
	_, closeLog, err := telemetry.InitLogger(os.Stdout, telemetry.ParseLevel(os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FILE"))
	if err != nil {
		slog.Error("failed to init logger", "err", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	tracer, meter, shutdownTelemetry, err := telemetry.InitTelemetry(ctx, os.Getenv("OTEL_EXPORT_FILE"))
	if err != nil {
		slog.Error("failed to init telemetry", "err", err)
		os.Exit(1)
	}
	defer shutdownTelemetry()

	// ---- Configuration (read only here) ----
	contextFile := envString("CONTEXT_FILE", "test.txt")
	model := envString("OPENAI_MODEL", openai.DefaultModel)
	region := envString("AWS_REGION", "us-east-1")
	addr := envString("ADDR", ":3000")
	upstreamTimeout := envDuration("UPSTREAM_TIMEOUT", 0)

	// ---- AWS SDK config ----
	awsOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if akid, secret := os.Getenv("AKID"), os.Getenv("SAKID"); akid != "" && secret != "" {
		awsOpts = append(awsOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(akid, secret, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	apiKey, err := resolveOpenAIKey(ctx, cfg)
	if err != nil {
		slog.Error("failed to resolve OpenAI API key", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(apiKey,
		openai.WithModel(model),
		openai.WithBaseURL(os.Getenv("OPENAI_BASE_URL")),
	)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	pollyClient, err := polly.New(awspolly.NewFromConfig(cfg), os.Getenv("POLLY_VOICE"))
	if err != nil {
		slog.Error("failed to create Polly client", "err", err)
		os.Exit(1)
	}

	loader, err := scrape.NewFileLoader(contextFile)
	if err != nil {
		slog.Error("failed to create context loader", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(loader, openaiClient, pollyClient, usecase.WithTracer(tracer))
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService,
		handler.WithUI(webui.Handler()),
		handler.WithUpstreamTimeout(upstreamTimeout),
		handler.WithMeter(meter),
	)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		slog.Info("starting lambda handler", "model", openaiClient.Model(), "context_file", loader.Path())
		lambda.Start(h.Handle)
		return
	}

	if err := serve(addr, h.Routes()); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func serve(addr string, routes http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// resolveOpenAIKey reads OPENAI_API_KEY, falling back to Parameter Store
// under PARAM_PREFIX.
func resolveOpenAIKey(ctx context.Context, cfg aws.Config) (string, error) {
	explicit := os.Getenv("OPENAI_API_KEY")
	prefix := os.Getenv("PARAM_PREFIX")
	if strings.TrimSpace(explicit) != "" || strings.TrimSpace(prefix) == "" {
		return openai.ResolveAPIKey(ctx, explicit, nil, prefix)
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		return "", err
	}
	return openai.ResolveAPIKey(ctx, explicit, ssmClient, prefix)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring invalid duration", "key", key, "value", v)
		return def
	}
	return d
}
