package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

func TestRenderPortalAccessLocalized(t *testing.T) {
	data := PortalAccessData{
		Name:          "Ana",
		ApplicationID: "APP-202601-0001",
		TrackerURL:    "https://example.com/tracker/tok",
		Password:      "Xy7pQr2mNk",
	}

	msg, err := Render(TemplatePortalAccess, "pt-BR", "ana@example.com", data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(msg.Subject, "acompanhamento") {
		t.Fatalf("expected portuguese subject, got %q", msg.Subject)
	}
	for _, want := range []string{"Olá Ana", data.TrackerURL, data.Password, data.ApplicationID} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Text)
		}
	}
	if msg.To != "ana@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
}

func TestRenderFallsBackToEnglish(t *testing.T) {
	msg, err := Render(TemplatePortalAccess, "de", "x@example.com", PortalAccessData{Name: "Max"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(msg.Text, "Hello Max") {
		t.Fatalf("expected english body, got %q", msg.Text)
	}
}

func TestRenderDocumentRequest(t *testing.T) {
	msg, err := Render(TemplateDocumentRequest, "es", "x@example.com", DocumentRequestData{
		Name:      "Lucia",
		Documents: []string{"Passport Copy", "Birth Certificate"},
		UploadURL: "https://example.com/upload/abc",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"- Passport Copy", "- Birth Certificate", "https://example.com/upload/abc"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Text)
		}
	}
	if strings.Contains(msg.Text, "Fecha límite") {
		t.Fatal("due date line rendered without a due date")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := Render("nope", "en", "x@example.com", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(zap.NewNop().Sugar())
	if err := m.Send(context.Background(), Message{To: "x@example.com", Subject: "s"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func TestDispatcherSendsInBackground(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, TemplatePortalAccess, "en", "ana@example.com", PortalAccessData{Name: "Ana"})
	cancel()
	d.Wait()

	if len(mailer.sent) != 1 || mailer.sent[0].To != "ana@example.com" {
		t.Fatalf("expected one message to ana, got %+v", mailer.sent)
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	d := NewDispatcher(mailer, zap.NewNop().Sugar())

	d.Dispatch(context.Background(), TemplatePortalAccess, "en", "ana@example.com", PortalAccessData{})
	d.Dispatch(context.Background(), TemplatePortalAccess, "en", "", PortalAccessData{})
	d.Wait()

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one attempt and no retry, got %d", len(mailer.sent))
	}
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	var got *gomail.Message
	m := &SMTPMailer{from: "Agency <no-reply@agency.test>", send: func(msgs ...*gomail.Message) error {
		got = msgs[0]
		return nil
	}}

	if err := m.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hello", Text: "Body"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.GetHeader("To")[0] != "ana@example.com" || got.GetHeader("Subject")[0] != "Hello" {
		t.Fatalf("unexpected headers: to=%v subject=%v", got.GetHeader("To"), got.GetHeader("Subject"))
	}
}

func TestSMTPMailerStopsWaitingWhenContextEnds(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m := &SMTPMailer{from: "no-reply@agency.test", send: func(...*gomail.Message) error {
		<-release
		return nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Send(ctx, Message{To: "ana@example.com", Subject: "Hello"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Send blocked for %s", elapsed)
	}
}

func TestSMTPMailerReportsRelayError(t *testing.T) {
	m := &SMTPMailer{send: func(...*gomail.Message) error { return errors.New("535 auth failed") }}
	if err := m.Send(context.Background(), Message{To: "ana@example.com"}); err == nil || !strings.Contains(err.Error(), "535") {
		t.Fatalf("expected relay error, got %v", err)
	}
}
