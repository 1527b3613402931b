// Package conferencequeue forwards conferences published to an SQS queue to
// the conferences API.
package conferencequeue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/dannyrandall/conferences/internal/conference"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// SQS is the part of *sqs.Client the queue uses.
type SQS interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is the body of a queued conference. Key is optional.
type Message struct {
	Key string `json:"key,omitempty"`
	conference.Conference
}

type Queue struct {
	SQS    SQS
	HTTP   *http.Client
	Tracer trace.Tracer

	CreateConferenceURL string
	QueueName           string
	QueueURL            string
	WaitTimeSeconds     int32
}

// ReceiveAndProcess polls the queue until ctx is done. Failed messages are
// left on the queue to be redelivered.
func (q *Queue) ReceiveAndProcess(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := q.recvAndProcess(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Str("queue", q.QueueName).Msg("Unable to process messages")
		}
	}
}

func (q *Queue) recvAndProcess(ctx context.Context) error {
	ctx, span := q.Tracer.Start(ctx, "recvAndProcess",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(semconv.MessagingSystemKey.String("AmazonSQS")),
		trace.WithAttributes(semconv.MessagingDestinationKey.String(q.QueueName)),
		trace.WithAttributes(semconv.MessagingDestinationKindQueue))
	defer span.End()

	msgs, err := q.receiveMessages(ctx)
	if err != nil {
		return spanErrorf(span, "receive messages: %w", err)
	}

	var errs []error
	for _, msg := range msgs {
		if err := q.processMessage(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("process message %q: %w", aws.ToString(msg.MessageId), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return spanErrorf(span, "%w", err)
	}

	return nil
}

func spanErrorf(span trace.Span, format string, a ...any) error {
	err := fmt.Errorf(format, a...)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (q *Queue) receiveMessages(ctx context.Context) ([]types.Message, error) {
	res, err := q.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.QueueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     q.WaitTimeSeconds,
	})
	if err != nil {
		return nil, err
	}

	return res.Messages, nil
}

func (q *Queue) processMessage(ctx context.Context, msg types.Message) error {
	ctx, span := q.Tracer.Start(ctx, "processMessage", trace.WithAttributes(semconv.MessagingMessageIDKey.String(aws.ToString(msg.MessageId))))
	defer span.End()

	var m Message
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &m); err != nil {
		return spanErrorf(span, "unmarshal conference: %w", err)
	}

	if err := q.createConference(ctx, m); err != nil {
		return spanErrorf(span, "create conference: %w", err)
	}

	if err := q.deleteMessage(ctx, msg.ReceiptHandle); err != nil {
		return spanErrorf(span, "delete message: %w", err)
	}

	log.Info().Str("message_id", aws.ToString(msg.MessageId)).Stringer("conference", m.Conference).Msg("Processed message")
	return nil
}

func (q *Queue) createConference(ctx context.Context, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode conference: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.CreateConferenceURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("bad response: status code %v", resp.StatusCode)
	}

	return nil
}

func (q *Queue) deleteMessage(ctx context.Context, receiptHandle *string) error {
	_, err := q.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.QueueURL),
		ReceiptHandle: receiptHandle,
	})

	return err
}
