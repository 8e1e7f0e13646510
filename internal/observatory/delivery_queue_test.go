package observatory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func urlsOf(events []RequestEvent) (output []string) {
	for _, ev := range events {
		output = append(output, ev.URL)
	}
	return
}

func Test_DeliveryQueue_PushPopN(t *testing.T) {
	q := NewDeliveryQueue(0)
	require.Equal(t, DefaultMaxQueueLength, q.MaxLength())

	evicted := q.Push(
		testEvent("https://a.example.com/api/0", 200, 1),
		testEvent("https://a.example.com/api/1", 200, 1),
		testEvent("https://a.example.com/api/2", 200, 1),
	)
	require.Zero(t, evicted)
	require.Equal(t, 3, q.Len())

	batch := q.PopN(2)
	require.Equal(t, []string{"https://a.example.com/api/0", "https://a.example.com/api/1"}, urlsOf(batch))
	require.Equal(t, 1, q.Len())

	batch = q.PopN(10)
	require.Len(t, batch, 1)
	require.Empty(t, q.PopN(10))
}

func Test_DeliveryQueue_evictsOldest(t *testing.T) {
	q := NewDeliveryQueue(3)
	for index := range 5 {
		q.Push(testEvent("https://a.example.com/api/"+string(rune('a'+index)), 200, 1))
	}
	require.Equal(t, 3, q.Len())
	require.Equal(t, []string{
		"https://a.example.com/api/c",
		"https://a.example.com/api/d",
		"https://a.example.com/api/e",
	}, urlsOf(q.Snapshot()))
}

func Test_DeliveryQueue_PushFront_preservesOrderThenEvicts(t *testing.T) {
	q := NewDeliveryQueue(4)
	q.Push(
		testEvent("https://a.example.com/api/0", 200, 1),
		testEvent("https://a.example.com/api/1", 200, 1),
		testEvent("https://a.example.com/api/2", 200, 1),
	)
	batch := q.PopN(2)
	q.Push(
		testEvent("https://a.example.com/api/3", 200, 1),
		testEvent("https://a.example.com/api/4", 200, 1),
	)

	evicted := q.PushFront(batch...)
	require.Equal(t, 1, evicted)
	require.Equal(t, []string{
		"https://a.example.com/api/1",
		"https://a.example.com/api/2",
		"https://a.example.com/api/3",
		"https://a.example.com/api/4",
	}, urlsOf(q.Snapshot()))
}
