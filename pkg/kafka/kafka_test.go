package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/resilience"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "analytics-events")
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	assert.Equal(t, "analytics-events", p.Topic())

	require.NoError(t, p.Publish(context.Background(), Event{Key: "q", Value: map[string]int{"hits": 2}}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "q", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"hits":2}`, string(w.msgs[0].Value))
	assert.True(t, w.msgs[0].Time.Equal(time.Unix(1700000000, 0)))
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, "application/json", string(w.msgs[0].Headers[0].Value))
}

func TestPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t")

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Empty(t, w.msgs)

	require.NoError(t, p.PublishBatch(context.Background(), []Event{{Key: "a", Value: 1}, {Key: "b", Value: 2}}))
	assert.Len(t, w.msgs, 2)

	w.err = errors.New("broker down")
	assert.Error(t, p.PublishBatch(context.Background(), []Event{{Key: "c", Value: 3}}))

	err := p.Publish(context.Background(), Event{Key: "d", Value: func() {}})
	assert.ErrorContains(t, err, "marshaling")
}

func TestDecodeJSON(t *testing.T) {
	type indexComplete struct {
		Path string `json:"path"`
	}
	v, err := DecodeJSON[indexComplete]([]byte(`{"path":"/data/db-2.rqe"}`))
	require.NoError(t, err)
	assert.Equal(t, "/data/db-2.rqe", v.Path)

	_, err = DecodeJSON[indexComplete]([]byte(`{`))
	assert.Error(t, err)
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestConsumerRetriesThenCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte("flaky")},
			{Offset: 2, Value: []byte("broken")},
			{Offset: 3, Value: []byte("permanent")},
		},
		cancel: cancel,
	}
	attempts := map[string]int{}
	c := newConsumer(r, "index.complete", func(_ context.Context, _ []byte, value []byte) error {
		attempts[string(value)]++
		switch string(value) {
		case "flaky":
			if attempts["flaky"] < 2 {
				return errors.New("not yet")
			}
			return nil
		case "broken":
			return errors.New("always")
		default:
			return resilience.Permanent(errors.New("bad message"))
		}
	})
	c.retry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, map[string]int{"flaky": 2, "broken": 3, "permanent": 1}, attempts)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
}
