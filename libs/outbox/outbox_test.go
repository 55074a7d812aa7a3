package outbox

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/iris/libs/kafkax"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

var outboxColumns = []string{"id", "event_id", "aggregate_type", "aggregate_id", "business_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent("business.schedule.changed.v1", "business", "b1", "b1", map[string]string{"staff_id": "s1"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if evt.EventID == "" || string(evt.Payload) != `{"staff_id":"s1"}` {
		t.Fatalf("unexpected event %+v", evt)
	}
	if _, err := NewEvent("x", "y", "z", "", func() {}); err == nil {
		t.Fatalf("expected encode error")
	}
}

func TestInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	evt := Event{EventID: "e1", AggregateType: "appointment", AggregateID: "a1", BusinessID: "b1", EventType: "booking.appointment.booked.v1", Payload: []byte(`{}`)}
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("e1", "appointment", "a1", "b1", "booking.appointment.booked.v1", []byte(`{}`), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := NewRepository().Insert(context.Background(), mock, evt); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPublishBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(10).WillReturnRows(
		pgxmock.NewRows(outboxColumns).
			AddRow(int64(7), "e7", "appointment", "a1", "b1", "booking.appointment.booked.v1", []byte(`{"id":"a1"}`), "", "", now).
			AddRow(int64(8), "e8", "appointment", "a2", "b1", "booking.appointment.cancelled.v1", []byte(`{"id":"a2"}`), "", "", now),
	)
	mock.ExpectExec("UPDATE outbox_events").WithArgs([]int64{7, 8}).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	w := &fakeWriter{}
	p := NewPublisher(mock, NewRepository(), slog.New(slog.DiscardHandler), PublisherConfig{BatchSize: 10, Writer: w})
	n, err := p.PublishBatch(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("PublishBatch: n=%d err=%v", n, err)
	}
	if len(w.msgs) != 2 || w.msgs[0].Topic != "booking.appointment.booked.v1" || string(w.msgs[1].Key) != "a2" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	if meta := kafkax.ExtractEventMeta(w.msgs[0]); meta.EventID != "e7" || meta.BusinessID != "b1" {
		t.Fatalf("unexpected headers %+v", meta)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPublishBatch_WriterFailureKeepsEvents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(50).WillReturnRows(
		pgxmock.NewRows(outboxColumns).
			AddRow(int64(1), "e1", "business", "b1", "b1", "business.schedule.changed.v1", []byte(`{}`), "", "", time.Now()),
	)
	mock.ExpectRollback()

	boom := errors.New("broker down")
	p := NewPublisher(mock, NewRepository(), slog.New(slog.DiscardHandler), PublisherConfig{Writer: &fakeWriter{err: boom}})
	if _, err := p.PublishBatch(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
