// Пакет notify — уведомления о готовности выгрузки по электронной почте.
// Параметры уведомления сохраняются в settings/notify.json при
// планировании download и забираются (читаются и удаляются) после
// успешной подготовки данных.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/atomicfile"
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stg_notifications_total",
	Help: "Количество уведомлений о готовности выгрузки по результату.",
}, []string{"result"})

// Properties — параметры уведомления перемещения.
type Properties struct {
	Receiver string `json:"receiver"`
}

// WriteProperties сохраняет параметры уведомления в settingsDir.
func WriteProperties(settingsDir string, p Properties) error {
	return atomicfile.WriteJSON(filepath.Join(settingsDir, model.NotifyFile), p)
}

// TakeProperties читает и удаляет параметры уведомления.
// ok=false, если параметры не сохранялись.
func TakeProperties(settingsDir string) (p Properties, ok bool, err error) {
	path := filepath.Join(settingsDir, model.NotifyFile)
	if err := atomicfile.ReadJSON(path, &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Properties{}, false, nil
		}
		return Properties{}, false, err
	}
	if err := atomicfile.Delete(path); err != nil {
		return Properties{}, false, err
	}
	return p, p.Receiver != "", nil
}

// MailConfig — параметры почтового сервера.
type MailConfig struct {
	// Server — адрес SMTP-сервера host:port
	Server string `yaml:"server"`
	// Sender — адрес отправителя
	Sender string `yaml:"sender"`
	// Username, Password — учётные данные PLAIN-аутентификации (опционально)
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Sender — отправка письма.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// sendFunc совпадает по сигнатуре с smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer — отправка писем через SMTP.
type Mailer struct {
	cfg    MailConfig
	send   sendFunc
	logger *slog.Logger
}

// NewMailer создаёт Mailer.
func NewMailer(cfg MailConfig, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: logger.With(slog.String("component", "mailer")),
	}
}

// Configured проверяет, заданы ли сервер и отправитель.
func (m *Mailer) Configured() bool {
	return m.cfg.Server != "" && m.cfg.Sender != ""
}

// Send реализует Sender. Без сервера или отправителя письмо не
// отправляется, выводится предупреждение.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if !m.Configured() {
		m.logger.Warn("Почтовый сервер или отправитель не настроены, письмо не отправлено",
			slog.String("to", to),
			slog.String("subject", subject),
		)
		notificationsTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		host := m.cfg.Server
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}

	msg := buildMessage(m.cfg.Sender, to, subject, body)
	if err := m.send(m.cfg.Server, auth, m.cfg.Sender, []string{to}, msg); err != nil {
		notificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("ошибка отправки письма %s: %w", to, err)
	}
	notificationsTotal.WithLabelValues("sent").Inc()

	m.logger.Info("Письмо отправлено",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// DownloadReady формирует тему и текст письма о готовности выгрузки.
func DownloadReady(transferID, accessURL string) (subject, body string) {
	subject = fmt.Sprintf("Download #%s available", transferID)
	body = fmt.Sprintf("Your download #%s is ready.\n\nThe data can be accessed at:\n%s\n", transferID, accessURL)
	return subject, body
}
