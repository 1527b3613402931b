package conferencequeue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/dannyrandall/conferences/internal/handlers"
	"github.com/dannyrandall/conferences/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// fakeSQS hands out its messages on the first receive and cancels the
// consumer on the next one.
type fakeSQS struct {
	mu       sync.Mutex
	messages []types.Message
	deleted  []string
	receives int
	cancel   context.CancelFunc
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.receives++
	if f.receives > 1 {
		f.cancel()
		return &sqs.ReceiveMessageOutput{}, nil
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func message(id, body string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String(body),
	}
}

func newQueue(t *testing.T, fake *fakeSQS, url string) *Queue {
	t.Helper()

	return &Queue{
		SQS:                 fake,
		HTTP:                http.DefaultClient,
		Tracer:              trace.NewNoopTracerProvider().Tracer(""),
		CreateConferenceURL: url,
		QueueName:           "conf-test-createConference",
		QueueURL:            "https://sqs.example.com/123/conf-test-createConference",
	}
}

func TestReceiveAndProcess(t *testing.T) {
	backend := store.NewMemory()
	srv := httptest.NewServer(&handlers.Conference{Backend: backend, Folder: "folder"})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeSQS{
		cancel: cancel,
		messages: []types.Message{
			message("1", `{"key":"pycon","name":"pycon","year":2011}`),
			message("2", `not json`),
			message("3", `{"name":"europython","year":2011}`),
		},
	}

	err := newQueue(t, fake, srv.URL).ReceiveAndProcess(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.ElementsMatch(t, []string{"rh-1", "rh-3"}, fake.deleted, "undecodable messages stay on the queue")

	tx := store.Open(backend)
	c, err := tx.Folder("folder").Get(context.Background(), "pycon")
	require.NoError(t, err)
	assert.Equal(t, "Pycon", c.Title())

	keys, err := tx.Folder("folder").Keys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestFailedCreateKeepsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeSQS{
		cancel:   cancel,
		messages: []types.Message{message("1", `{"key":"pycon","name":"pycon","year":2011}`)},
	}

	err := newQueue(t, fake, srv.URL).ReceiveAndProcess(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.deleted)
}
