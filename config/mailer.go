package config

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// MailConfigured reports whether SMTP_HOST and SMTP_FROM are set.
func (s *Settings) MailConfigured() bool {
	return s != nil && s.SMTPHost != "" && s.SMTPFrom != ""
}

// MailConfigured reports whether the loaded settings can send mail.
func MailConfigured() bool {
	return App.MailConfigured()
}

func SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	settings := App
	if !settings.MailConfigured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	m := mail.NewMessage()
	m.SetHeader("From", settings.SMTPFrom)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(settings.SMTPHost, settings.SMTPPort, settings.SMTPUser, settings.SMTPPass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         settings.SMTPHost,
		InsecureSkipVerify: settings.SMTPSkipTLSVerify, // dev only
	}

	return d.DialAndSend(m)
}
