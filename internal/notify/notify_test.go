package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"os"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestProperties_WriteTake проверяет, что параметры забираются однократно.
func TestProperties_WriteTake(t *testing.T) {
	dir := t.TempDir()

	if _, ok, err := TakeProperties(dir); err != nil || ok {
		t.Fatalf("без файла: ok=%v err=%v", ok, err)
	}

	if err := WriteProperties(dir, Properties{Receiver: "alice@example.org"}); err != nil {
		t.Fatalf("ошибка WriteProperties: %v", err)
	}
	p, ok, err := TakeProperties(dir)
	if err != nil || !ok || p.Receiver != "alice@example.org" {
		t.Fatalf("TakeProperties: %+v ok=%v err=%v", p, ok, err)
	}
	if _, ok, _ := TakeProperties(dir); ok {
		t.Error("параметры должны удаляться после чтения")
	}
}

// TestMailer_Send проверяет формирование и отправку письма.
func TestMailer_Send(t *testing.T) {
	m := NewMailer(MailConfig{Server: "smtp.example.org:25", Sender: "staging@example.org"}, testLogger())

	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	subject, body := DownloadReady("d-1", "https://staging.example/cache/d-1/")
	if subject != "Download #d-1 available" {
		t.Errorf("неожиданная тема: %s", subject)
	}
	if err := m.Send(context.Background(), "alice@example.org", subject, body); err != nil {
		t.Fatalf("ошибка Send: %v", err)
	}
	if gotAddr != "smtp.example.org:25" || len(gotTo) != 1 || gotTo[0] != "alice@example.org" {
		t.Errorf("неожиданные параметры отправки: %s %v", gotAddr, gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Download #d-1 available") ||
		!strings.Contains(gotMsg, "https://staging.example/cache/d-1/") {
		t.Errorf("неожиданное письмо:\n%s", gotMsg)
	}
}

// TestMailer_NotConfigured проверяет пропуск отправки без настроек.
func TestMailer_NotConfigured(t *testing.T) {
	m := NewMailer(MailConfig{Server: "smtp.example.org:25"}, testLogger())
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("отправка без отправителя не должна выполняться")
		return nil
	}
	if err := m.Send(context.Background(), "a@b", "s", "b"); err != nil {
		t.Errorf("ожидался nil, получено %v", err)
	}
}

// TestMailer_SendError проверяет передачу ошибки SMTP.
func TestMailer_SendError(t *testing.T) {
	m := NewMailer(MailConfig{Server: "smtp:25", Sender: "s@x"}, testLogger())
	smtpErr := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return smtpErr }

	if err := m.Send(context.Background(), "a@b", "s", "b"); !errors.Is(err, smtpErr) {
		t.Errorf("ожидалась ошибка SMTP, получено %v", err)
	}
}
