package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/class-booking/internal/application"
	"github.com/example/class-booking/internal/logging"
)

func sampleEvent() application.BookingAccepted {
	return application.BookingAccepted{
		Reservation: application.Reservation{
			ID:        "res-001",
			Name:      "Alice",
			Email:     "alice@example.com",
			Phone:     "0600000000",
			Date:      "2024-06-01",
			Time:      "19h30",
			PoolKey:   "2024-06-01",
			CreatedAt: time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC),
		},
		Remaining: 7,
		Capacity:  10,
	}
}

func TestFormatDateFR(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"2024-06-01": "Samedi 1 juin 2024",
		"2024-08-15": "Jeudi 15 aout 2024",
		"2025-02-03": "Lundi 3 fevrier 2025",
	}
	for in, want := range cases {
		got, err := FormatDateFR(in)
		if err != nil {
			t.Fatalf("FormatDateFR(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("FormatDateFR(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := FormatDateFR("01/06/2024"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func TestMailerSendsClientAndOwnerMessages(t *testing.T) {
	t.Parallel()

	m, err := NewMailer(MailerConfig{
		Addr:       "smtp.example.com:587",
		Username:   "user",
		Password:   "pass",
		From:       "booking@example.com",
		FromName:   "Anima Flow",
		OwnerEmail: "owner@example.com",
		Price:      "15€",
		Format:     "Visioconference - 60 min",
		Instructor: "Amina",
	})
	if err != nil {
		t.Fatalf("NewMailer returned error: %v", err)
	}

	var (
		mu   sync.Mutex
		sent []sentMail
	)
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		mu.Lock()
		defer mu.Unlock()
		if a == nil {
			t.Errorf("expected smtp auth to be configured")
		}
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}

	if err := m.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("expected two messages, got %d", len(sent))
	}

	client := sent[0]
	if client.to[0] != "alice@example.com" || client.addr != "smtp.example.com:587" || client.from != "booking@example.com" {
		t.Fatalf("unexpected client envelope: %#v", client)
	}
	for _, want := range []string{
		"Bonjour Alice", "Samedi 1 juin 2024", "19h30", "15€", "Content-Type: text/html",
		"Format :</strong> Visioconference - 60 min",
		"Le lien de visioconference vous sera envoye par Amina avant le cours.",
		"Amina - Anima Flow",
	} {
		if !strings.Contains(client.msg, want) {
			t.Fatalf("client message missing %q:\n%s", want, client.msg)
		}
	}

	owner := sent[1]
	if owner.to[0] != "owner@example.com" {
		t.Fatalf("unexpected owner recipient %v", owner.to)
	}
	for _, want := range []string{"Places restantes :</strong> 7/10", "alice@example.com", "0600000000"} {
		if !strings.Contains(owner.msg, want) {
			t.Fatalf("owner message missing %q:\n%s", want, owner.msg)
		}
	}
}

func TestMailerEscapesUserInput(t *testing.T) {
	t.Parallel()

	m, err := NewMailer(MailerConfig{Addr: "localhost:25", From: "booking@example.com"})
	if err != nil {
		t.Fatalf("NewMailer returned error: %v", err)
	}
	var body string
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		body = string(msg)
		return nil
	}

	event := sampleEvent()
	event.Reservation.Name = "<script>alert(1)</script>"
	if err := m.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatalf("expected name to be escaped:\n%s", body)
	}
}

func TestMailerReportsEveryFailure(t *testing.T) {
	t.Parallel()

	m, err := NewMailer(MailerConfig{Addr: "localhost:25", From: "booking@example.com", OwnerEmail: "owner@example.com"})
	if err != nil {
		t.Fatalf("NewMailer returned error: %v", err)
	}
	boom := errors.New("smtp down")
	calls := 0
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return boom
	}

	err = m.Notify(context.Background(), sampleEvent())
	if !errors.Is(err, boom) {
		t.Fatalf("expected smtp error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected owner mail to be attempted after client failure, got %d calls", calls)
	}
}

func TestNewMailerValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewMailer(MailerConfig{From: "a@example.com"}); err == nil {
		t.Fatalf("expected missing address error")
	}
	if _, err := NewMailer(MailerConfig{Addr: "no-port", From: "a@example.com"}); err == nil {
		t.Fatalf("expected address without port to be rejected")
	}
}

type writerStub struct {
	msgs []kafka.Message
	err  error
}

func (w *writerStub) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *writerStub) Close() error { return nil }

func TestKafkaNotifier(t *testing.T) {
	t.Parallel()

	writer := &writerStub{}
	n := &KafkaNotifier{writer: writer}

	if err := n.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if len(writer.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.msgs))
	}

	msg := writer.msgs[0]
	if string(msg.Key) != "2024-06-01" {
		t.Fatalf("expected pool key as message key, got %q", msg.Key)
	}
	var body acceptedMessage
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if body.ReservationID != "res-001" || body.Remaining != 7 || body.Capacity != 10 || body.Time != "19h30" {
		t.Fatalf("unexpected body %#v", body)
	}

	writer.err = errors.New("broker down")
	if err := n.Notify(context.Background(), sampleEvent()); !errors.Is(err, writer.err) {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestHeaderCarrier(t *testing.T) {
	t.Parallel()

	var headers []kafka.Header
	c := headerCarrier{headers: &headers}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("tracestate", "x")

	if c.Get("traceparent") != "b" || c.Get("missing") != "" {
		t.Fatalf("unexpected header values %v", headers)
	}
	if keys := c.Keys(); len(keys) != 2 {
		t.Fatalf("expected two keys, got %v", keys)
	}
}

type notifierFunc func(context.Context, application.BookingAccepted) error

func (f notifierFunc) Notify(ctx context.Context, e application.BookingAccepted) error { return f(ctx, e) }

func TestFanoutDeliversToEveryChannel(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		delivered int
	)
	ok := notifierFunc(func(context.Context, application.BookingAccepted) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})
	first := errors.New("first")
	second := errors.New("second")

	err := Fanout{ok, notifierFunc(func(context.Context, application.BookingAccepted) error { return first }), nil, ok,
		notifierFunc(func(context.Context, application.BookingAccepted) error { return second })}.Notify(context.Background(), sampleEvent())

	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both failures joined, got %v", err)
	}
	if delivered != 2 {
		t.Fatalf("expected healthy channels to deliver, got %d", delivered)
	}
}

func TestLogNotifierPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&base, nil)))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))

	if err := n.Notify(ctx, sampleEvent()); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if base.Len() != 0 || !strings.Contains(scoped.String(), `"reservation_id":"res-001"`) {
		t.Fatalf("expected scoped log entry, base=%q scoped=%q", base.String(), scoped.String())
	}
}
