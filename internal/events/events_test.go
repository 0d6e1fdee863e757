package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	apperrors "proslots/pkg/errors"
	"proslots/pkg/kafka"
	"proslots/pkg/logger"
	"proslots/pkg/model"
)

type mockProducer struct {
	PublishFunc func(ctx context.Context, msg kafka.Message) error
}

func (m *mockProducer) Publish(ctx context.Context, msg kafka.Message) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, msg)
	}
	return nil
}

type mockHooks struct {
	calls []string
	err   error
}

func (m *mockHooks) record(name string) error {
	m.calls = append(m.calls, name)
	return m.err
}

func (m *mockHooks) OnBookingAccepted(ctx context.Context, id string) error {
	return m.record("accepted:" + id)
}

func (m *mockHooks) OnBookingRejected(ctx context.Context, id string) error {
	return m.record("rejected:" + id)
}

func (m *mockHooks) OnBookingCancelled(ctx context.Context, id string) error {
	return m.record("cancelled:" + id)
}

func (m *mockHooks) OnBookingCompleted(ctx context.Context, id string) error {
	return m.record("completed:" + id)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	var got kafka.Message
	producer := &mockProducer{PublishFunc: func(ctx context.Context, msg kafka.Message) error {
		got = msg
		return nil
	}}
	pub := NewKafkaPublisher(producer, "proslots", logger.Discard())

	ev := SlotEvent{
		Type:          EventSlotReleased,
		BookingID:     "b1",
		ProID:         "p1",
		Day:           model.Monday,
		Slots:         []model.SlotRef{{StartTime: "09:00", EndTime: "10:00"}},
		PreferredDate: "2025-06-02",
		Reason:        ReasonElapsed,
	}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got.Key != "b1" {
		t.Errorf("Key = %q, want b1", got.Key)
	}
	if got.GetEventType() != EventSlotReleased {
		t.Errorf("event type = %q", got.GetEventType())
	}

	var decoded SlotEvent
	if err := json.Unmarshal(got.Value, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Day != model.Monday || decoded.Reason != ReasonElapsed {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.OccurredAt.IsZero() {
		t.Error("OccurredAt should be filled in")
	}
}

func TestKafkaPublisher_ProducerError(t *testing.T) {
	producer := &mockProducer{PublishFunc: func(ctx context.Context, msg kafka.Message) error {
		return errors.New("broker down")
	}}
	pub := NewKafkaPublisher(producer, "proslots", logger.Discard())

	if err := pub.Publish(context.Background(), SlotEvent{Type: EventSlotReserved, BookingID: "b1"}); err == nil {
		t.Fatal("expected error")
	}
}

func lifecycleMessage(t *testing.T, ev any) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().WithKey("k").WithValue(ev).Build()
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestLifecycleHandler_Dispatch(t *testing.T) {
	tests := []struct {
		status model.BookingStatus
		want   string
	}{
		{model.BookingAccepted, "accepted:b1"},
		{model.BookingRejected, "rejected:b1"},
		{model.BookingCancelled, "cancelled:b1"},
		{model.BookingCompleted, "completed:b1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			hooks := &mockHooks{}
			h := NewLifecycleHandler(hooks, logger.Discard())

			err := h.Handle(context.Background(), lifecycleMessage(t, LifecycleEvent{BookingID: "b1", Status: tt.status}))
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if len(hooks.calls) != 1 || hooks.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", hooks.calls, tt.want)
			}
		})
	}
}

func TestLifecycleHandler_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		msg     func(t *testing.T) kafka.Message
		hookErr error
		want    kafka.ErrorType
	}{
		{
			name: "malformed payload",
			msg: func(t *testing.T) kafka.Message {
				return kafka.Message{Value: []byte("{not json")}
			},
			want: kafka.ErrorTypePermanent,
		},
		{
			name: "missing booking id",
			msg: func(t *testing.T) kafka.Message {
				return lifecycleMessage(t, LifecycleEvent{Status: model.BookingCancelled})
			},
			want: kafka.ErrorTypePermanent,
		},
		{
			name: "pending is not a lifecycle event",
			msg: func(t *testing.T) kafka.Message {
				return lifecycleMessage(t, LifecycleEvent{BookingID: "b1", Status: model.BookingPending})
			},
			want: kafka.ErrorTypePermanent,
		},
		{
			name: "unknown booking",
			msg: func(t *testing.T) kafka.Message {
				return lifecycleMessage(t, LifecycleEvent{BookingID: "b1", Status: model.BookingCancelled})
			},
			hookErr: apperrors.NotFound("Booking"),
			want:    kafka.ErrorTypeBusiness,
		},
		{
			name: "invalid transition",
			msg: func(t *testing.T) kafka.Message {
				return lifecycleMessage(t, LifecycleEvent{BookingID: "b1", Status: model.BookingCompleted})
			},
			hookErr: apperrors.Conflict("cannot complete"),
			want:    kafka.ErrorTypeBusiness,
		},
		{
			name: "store failure",
			msg: func(t *testing.T) kafka.Message {
				return lifecycleMessage(t, LifecycleEvent{BookingID: "b1", Status: model.BookingAccepted})
			},
			hookErr: errors.New("mongo unavailable"),
			want:    kafka.ErrorTypeTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLifecycleHandler(&mockHooks{err: tt.hookErr}, logger.Discard())

			err := h.Handle(context.Background(), tt.msg(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := kafka.ClassifyError(err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}
