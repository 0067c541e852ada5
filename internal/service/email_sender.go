package service

import (
	"crypto/tls"
	"fmt"
	"html"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/sirupsen/logrus"
)

// SMTPConfig параметры почтового сервера
type SMTPConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	Enabled            bool
	InsecureSkipVerify bool
}

// EmailSender отправляет уведомления по операциям на почту держателя карты
type EmailSender struct {
	dialer  *mail.Dialer
	from    string
	enabled bool
	logger  *logrus.Logger
}

func NewEmailSender(cfg SMTPConfig, logger *logrus.Logger) *EmailSender {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	return &EmailSender{
		dialer:  d,
		from:    cfg.User,
		enabled: cfg.Enabled,
		logger:  logger,
	}
}

// Send отправляет уведомление. При выключенной отправке ничего не делает.
func (es *EmailSender) Send(to, subject, message string) error {
	if !es.enabled {
		es.logger.Debug("Отправка уведомлений отключена")
		return nil
	}

	m := mail.NewMessage()
	m.SetHeader("From", es.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", renderNotification(subject, message, time.Now()))

	if err := es.dialer.DialAndSend(m); err != nil {
		es.logger.WithError(err).Error("Ошибка отправки email")
		return fmt.Errorf("не удалось отправить email: %w", err)
	}

	es.logger.Infof("Email успешно отправлен на %s", to)
	return nil
}

func renderNotification(title, message string, at time.Time) string {
	return fmt.Sprintf(`
		<h1>%s</h1>
		<p>%s</p>
		<p>Дата: <strong>%s</strong></p>
		<small>Это автоматическое уведомление, пожалуйста, не отвечайте на него</small>
	`, html.EscapeString(title), html.EscapeString(message), at.Format("02.01.2006 15:04"))
}
