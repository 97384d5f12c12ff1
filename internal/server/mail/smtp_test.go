package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

type capturedSend struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func stubSendMail(t *testing.T, retErr error) *capturedSend {
	t.Helper()
	cap := &capturedSend{}
	orig := sendMail
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		cap.addr = addr
		cap.from = from
		cap.to = to
		cap.msg = msg
		return retErr
	}
	t.Cleanup(func() { sendMail = orig })
	return cap
}

func TestSendVerificationCode_BuildsMessage(t *testing.T) {
	cap := stubSendMail(t, nil)

	m := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@devsync.dev")
	err := m.SendVerificationCode(context.Background(), "alice@example.com", "Alice", "123456")
	if err != nil {
		t.Fatalf("SendVerificationCode error: %v", err)
	}

	if cap.addr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr: %q", cap.addr)
	}
	if cap.from != "noreply@devsync.dev" || len(cap.to) != 1 || cap.to[0] != "alice@example.com" {
		t.Fatalf("unexpected envelope: from=%q to=%v", cap.from, cap.to)
	}

	msg := string(cap.msg)
	for _, want := range []string{
		"Subject: Verify your email",
		"Content-Type: text/html",
		"123456",
		"Hi Alice",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSendPasswordReset_BuildsMessage(t *testing.T) {
	cap := stubSendMail(t, nil)

	m := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@devsync.dev")
	err := m.SendPasswordReset(context.Background(), "bob@example.com", "Bob", "https://app.devsync.dev/reset-password/tok")
	if err != nil {
		t.Fatalf("SendPasswordReset error: %v", err)
	}

	msg := string(cap.msg)
	if !strings.Contains(msg, "Subject: Reset your password") {
		t.Fatalf("missing subject:\n%s", msg)
	}
	if !strings.Contains(msg, "https://app.devsync.dev/reset-password/tok") {
		t.Fatalf("missing reset link:\n%s", msg)
	}
}

func TestSend_RelayError(t *testing.T) {
	stubSendMail(t, errors.New("connection refused"))

	m := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@devsync.dev")
	err := m.SendVerificationCode(context.Background(), "alice@example.com", "Alice", "123456")
	if err == nil || !strings.Contains(err.Error(), "smtp send failed") {
		t.Fatalf("expected wrapped smtp error, got %v", err)
	}
}

func TestSend_CancelledContext(t *testing.T) {
	cap := stubSendMail(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@devsync.dev")
	if err := m.SendVerificationCode(ctx, "alice@example.com", "Alice", "123456"); err == nil {
		t.Fatal("expected context error")
	}
	if cap.msg != nil {
		t.Fatal("message sent despite cancelled context")
	}
}
