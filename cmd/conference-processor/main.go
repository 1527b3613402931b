package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/dannyrandall/conferences/internal/conferencequeue"
	"github.com/dannyrandall/conferences/internal/config"
	"github.com/dannyrandall/conferences/internal/copilot"
	"github.com/dannyrandall/conferences/internal/logging"
	"github.com/dannyrandall/conferences/internal/otel"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelotel "go.opentelemetry.io/otel"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Conference processor failed")
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcName := copilot.ServiceName("conferences-processor")
	shutdown, err := otel.SetupTracer(ctx, svcName, cfg.TraceExporter)
	if err != nil {
		return fmt.Errorf("setup otel tracer: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Unable to flush traces")
		}
	}()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	q := &conferencequeue.Queue{
		SQS:                 sqs.NewFromConfig(awsCfg),
		HTTP:                otelhttp.DefaultClient,
		Tracer:              otelotel.Tracer(""),
		QueueName:           fmt.Sprintf("%s-%s-createConference", copilot.App(), copilot.Environment()),
		QueueURL:            copilot.QueueURI(),
		CreateConferenceURL: fmt.Sprintf("http://conferences-backend-service.%s.%s.local:8080/conferences/api/conference", copilot.Environment(), copilot.App()),
		WaitTimeSeconds:     20,
	}

	log.Info().Str("queue", q.QueueURL).Msg("Waiting for events")

	if err := q.ReceiveAndProcess(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive and process: %w", err)
	}
	return nil
}
