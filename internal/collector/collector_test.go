package collector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/wcharczuk/observatory/internal/observatory"
)

func testEvent(path string, statusCode int) observatory.RequestEvent {
	return observatory.RequestEvent{
		Kind:       observatory.KindFetch,
		URL:        "https://app.example.com" + path,
		Method:     "GET",
		StatusCode: statusCode,
		DurationMs: 12,
		Timestamp:  1700000000000,
		Domain:     "app.example.com",
	}
}

type recordedRequest struct {
	Header http.Header
	Body   []byte
}

type testCollectorServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	statuses []int
}

func (t *testCollectorServer) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	t.mu.Lock()
	t.requests = append(t.requests, recordedRequest{Header: req.Header.Clone(), Body: body})
	status := http.StatusOK
	if len(t.statuses) > 0 {
		status = t.statuses[0]
		t.statuses = t.statuses[1:]
	}
	t.mu.Unlock()
	rw.WriteHeader(status)
}

func (t *testCollectorServer) Requests() []recordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]recordedRequest(nil), t.requests...)
}

func Test_HTTP_Send(t *testing.T) {
	backend := new(testCollectorServer)
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	c := NewHTTP(server.URL + "/ingest").WithAPIKey("secret-key")
	err := c.Send(context.Background(), observatory.Batch{Events: []observatory.RequestEvent{
		testEvent("/api/users", 200),
		testEvent("/api/orders", 503),
	}})
	require.NoError(t, err)

	requests := backend.Requests()
	require.Len(t, requests, 1)
	require.Equal(t, observatory.Version, requests[0].Header.Get(observatory.HeaderVersion))
	require.Equal(t, "Bearer secret-key", requests[0].Header.Get("Authorization"))
	require.Contains(t, requests[0].Header.Get("Content-Type"), "application/json")

	var batch observatory.Batch
	require.NoError(t, json.Unmarshal(requests[0].Body, &batch))
	require.Len(t, batch.Events, 2)
	require.Equal(t, "https://app.example.com/api/users", batch.Events[0].URL)
	require.Equal(t, 503, batch.Events[1].StatusCode)
}

func Test_HTTP_Send_noAPIKey(t *testing.T) {
	backend := new(testCollectorServer)
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	require.NoError(t, NewHTTP(server.URL).Send(context.Background(), observatory.Batch{Events: []observatory.RequestEvent{testEvent("/api/a", 200)}}))
	requests := backend.Requests()
	require.Len(t, requests, 1)
	require.Empty(t, requests[0].Header.Get("Authorization"))
}

func Test_HTTP_Send_non2xx(t *testing.T) {
	for _, status := range []int{http.StatusMovedPermanently, http.StatusBadRequest, http.StatusInternalServerError} {
		backend := &testCollectorServer{statuses: []int{status}}
		server := httptest.NewServer(backend)

		c := NewHTTP(server.URL).WithClient(&http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		})
		err := c.Send(context.Background(), observatory.Batch{Events: []observatory.RequestEvent{testEvent("/api/a", 200)}})
		require.Error(t, err)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		require.Equal(t, status, statusErr.StatusCode)
		server.Close()
	}
}

func Test_HTTP_Send_unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	err := NewHTTP(endpoint).Send(context.Background(), observatory.Batch{Events: []observatory.RequestEvent{testEvent("/api/a", 200)}})
	require.Error(t, err)
}

func Test_HTTP_retriesIdenticalBatchAfterServerError(t *testing.T) {
	backend := &testCollectorServer{statuses: []int{http.StatusInternalServerError, http.StatusOK}}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	batcher := observatory.NewBatcher(NewHTTP(server.URL)).WithClock(clock)
	batcher.Start(ctx)
	t.Cleanup(batcher.Close)

	batcher.Enqueue(testEvent("/api/a", 200), testEvent("/api/b", 404), testEvent("/api/c", 0))

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(observatory.DefaultQuietPeriod)
	require.Eventually(t, func() bool {
		return batcher.Status().Attempt == 1
	}, 5*time.Second, time.Millisecond)
	require.EqualValues(t, 500, batcher.Status().LastDelayMs)
	require.Equal(t, 3, batcher.Status().QueueLength)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(observatory.DefaultBackoffInitial)
	require.Eventually(t, func() bool {
		status := batcher.Status()
		return status.TotalDelivered == 3 && status.QueueLength == 0 && !status.Flushing
	}, 5*time.Second, time.Millisecond)

	status := batcher.Status()
	require.Zero(t, status.Attempt)
	require.False(t, status.FlushScheduled)

	requests := backend.Requests()
	require.Len(t, requests, 2)
	require.JSONEq(t, string(requests[0].Body), string(requests[1].Body))
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("message-0")}, nil
}

func Test_SQS_Send(t *testing.T) {
	client := new(fakeSQS)
	c := NewSQS(client, "http://sqs.us-east-1.localhost:4566/000000000000/observatory")
	require.NoError(t, c.Send(context.Background(), observatory.Batch{Events: []observatory.RequestEvent{
		testEvent("/api/a", 200),
	}}))
	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	require.Equal(t, c.QueueURL(), aws.ToString(input.QueueUrl))
	require.Equal(t, observatory.Version, aws.ToString(input.MessageAttributes[MessageAttributeVersion].StringValue))

	var batch observatory.Batch
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &batch))
	require.Len(t, batch.Events, 1)
	require.Equal(t, "/api/a", batch.Events[0].URL[len("https://app.example.com"):])
}

func Test_SQS_Send_error(t *testing.T) {
	client := &fakeSQS{err: errors.New("throttled")}
	err := NewSQS(client, "queue").Send(context.Background(), observatory.Batch{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "throttled")
}

func Test_Discard(t *testing.T) {
	require.NoError(t, Discard{}.Send(context.Background(), observatory.Batch{Events: []observatory.RequestEvent{testEvent("/api/a", 200)}}))
}
