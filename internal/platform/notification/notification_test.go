package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()

	subject, body, err := e.Render("high-risk-alert", map[string]string{
		"patient_name": "John Doe",
		"surgery_type": "Cardiac Surgery",
		"assessment":   "Fever and bleeding reported",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "High risk: John Doe" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Fever and bleeding reported") {
		t.Errorf("body missing assessment: %q", body)
	}
}

func TestTemplateEngine_MissingTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestTemplateEngine_UnreplacedKeysLeftAsIs(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render("otp-login", map[string]string{"code": "123456"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(body, "123456") {
		t.Errorf("code not substituted: %q", body)
	}
	if !strings.Contains(body, "{{ttl_minutes}}") {
		t.Errorf("missing key should be left as-is: %q", body)
	}
}

func TestManager_SendEmail(t *testing.T) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	mgr := NewManager(email, sms, NewTemplateEngine())

	n := &Notification{
		Type:      TypeEmail,
		Recipient: "doctor@hospital.example",
		Subject:   "test",
		Body:      "hello",
	}
	if err := mgr.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n.Status != "sent" {
		t.Errorf("status = %q, want sent", n.Status)
	}
	if n.SentAt == nil {
		t.Error("SentAt not set")
	}
	if len(email.Calls()) != 1 {
		t.Fatalf("expected 1 email call, got %d", len(email.Calls()))
	}
}

func TestManager_SendFailureRecorded(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "relay down"}
	mgr := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	n := &Notification{Type: TypeEmail, Recipient: "a@b.c", Body: "x"}
	err := mgr.Send(context.Background(), n)
	if err == nil {
		t.Fatal("expected error")
	}
	if n.Status != "failed" {
		t.Errorf("status = %q, want failed", n.Status)
	}
	if n.Error != "relay down" {
		t.Errorf("error = %q", n.Error)
	}
}

func TestManager_Retry(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "relay down"}
	mgr := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	n := &Notification{Type: TypeEmail, Recipient: "a@b.c", Body: "x"}
	_ = mgr.Send(context.Background(), n)

	email.ShouldFail = false
	if err := mgr.Retry(context.Background(), n.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	got, err := mgr.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "sent" {
		t.Errorf("status after retry = %q, want sent", got.Status)
	}
	if got.Error != "" {
		t.Errorf("error not cleared: %q", got.Error)
	}
}

func TestManager_RetryOnlyFailed(t *testing.T) {
	mgr := NewManager(&MockEmailSender{}, &MockSMSSender{}, NewTemplateEngine())
	n := &Notification{Type: TypeEmail, Recipient: "a@b.c", Body: "x"}
	_ = mgr.Send(context.Background(), n)

	if err := mgr.Retry(context.Background(), n.ID); err == nil {
		t.Fatal("expected error retrying a sent notification")
	}
}

func TestManager_SendFromTemplate(t *testing.T) {
	sms := &MockSMSSender{}
	mgr := NewManager(&MockEmailSender{}, sms, NewTemplateEngine())

	n, err := mgr.SendFromTemplate(context.Background(), "otp-login", map[string]string{
		"code":        "987654",
		"ttl_minutes": "10",
	}, "+15550001111")
	if err != nil {
		t.Fatalf("SendFromTemplate: %v", err)
	}
	if n.Type != TypeSMS {
		t.Errorf("type = %q, want sms", n.Type)
	}
	calls := sms.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 sms call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Body, "987654") {
		t.Errorf("sms body missing code: %q", calls[0].Body)
	}
}

func TestManager_Stats(t *testing.T) {
	email := &MockEmailSender{}
	mgr := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	_ = mgr.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "a@b.c", Body: "x"})
	email.ShouldFail = true
	email.FailError = "down"
	_ = mgr.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "a@b.c", Body: "y"})

	stats := mgr.Stats(context.Background())
	if stats["sent"] != 1 || stats["failed"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestHTTPSMSSender(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewHTTPSMSSender(srv.URL, "key123", "CarePulse", time.Second)
	if err := sender.SendSMS(context.Background(), "+15550001111", "hello"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if gotAuth != "Bearer key123" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestHTTPSMSSender_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewHTTPSMSSender(srv.URL, "key123", "CarePulse", time.Second)
	if err := sender.SendSMS(context.Background(), "+15550001111", "hello"); err == nil {
		t.Fatal("expected error on gateway failure")
	}
}
