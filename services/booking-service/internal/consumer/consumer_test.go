package consumer

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/iris/libs/kafkax"
)

type recordingInvalidator struct {
	businesses []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, businessID string) (int, error) {
	r.businesses = append(r.businesses, businessID)
	return 1, nil
}

type memoryDedup map[string]bool

func (m memoryDedup) Record(_ context.Context, eventID, _ string) (bool, error) {
	if m[eventID] {
		return false, nil
	}
	m[eventID] = true
	return true, nil
}

type sliceReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) Close() error { return nil }

func scheduleEvent(eventID, body string) kafka.Message {
	return kafka.Message{
		Topic:   "business.schedule.changed.v1",
		Key:     []byte("b-key"),
		Value:   []byte(body),
		Headers: kafkax.EventMeta{EventID: eventID, EventType: "business.schedule.changed.v1"}.Headers(),
	}
}

func TestRun_InvalidatesOncePerEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv := &recordingInvalidator{}
	logger := slog.New(slog.DiscardHandler)
	reader := &sliceReader{cancel: cancel, msgs: []kafka.Message{
		scheduleEvent("e1", `{"business_id":"b1","change":"business_hours"}`),
		scheduleEvent("e1", `{"business_id":"b1","change":"business_hours"}`),
		scheduleEvent("e2", `not json`),
	}}

	New(logger, memoryDedup{}, Config{Reader: reader}, InvalidateSchedules(logger, inv)).Run(ctx)

	if len(inv.businesses) != 2 || inv.businesses[0] != "b1" || inv.businesses[1] != "b-key" {
		t.Fatalf("unexpected invalidations %v", inv.businesses)
	}
}

type failingDedup struct{}

func (failingDedup) Record(context.Context, string, string) (bool, error) {
	return false, errors.New("db down")
}

func TestHandle_DedupFailureSkipsHandler(t *testing.T) {
	called := false
	c := New(slog.New(slog.DiscardHandler), failingDedup{}, Config{Reader: &sliceReader{}}, func(context.Context, kafka.Message) error {
		called = true
		return nil
	})
	c.Handle(context.Background(), scheduleEvent("e1", `{}`))
	if called {
		t.Fatalf("expected handler to be skipped")
	}
}
