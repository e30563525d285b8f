// Package email sends outgoing mail over SMTP. Only the password reset
// flow needs it today; when SMTP is not configured the service degrades
// to a no-op and callers log the reset link instead.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured reports whether the service can actually send mail.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) sendHTML(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	const boundary = "assettrack-mail"

	lines := []string{
		"To: " + strings.Join(to, ", "),
		"From: " + from,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", boundary),
		"",
		"--" + boundary,
		"Content-Type: text/plain; charset=UTF-8",
		"",
		"Abra este email em um cliente com suporte a HTML.",
		"",
		"--" + boundary,
		"Content-Type: text/html; charset=UTF-8",
		"",
		htmlBody,
		"",
		"--" + boundary + "--",
		"",
	}
	msg := strings.Join(lines, "\r\n")

	return smtp.SendMail(s.server, s.auth, s.config.From, to, []byte(msg))
}

type passwordResetData struct {
	AppName  string
	UserName string
	ResetURL string
}

// SendPasswordResetEmail mails the single-use reset link to the user.
func (s *Service) SendPasswordResetEmail(to, userName, resetURL string) error {
	data := passwordResetData{
		AppName:  "AssetTrack",
		UserName: userName,
		ResetURL: resetURL,
	}

	subject := "Redefina sua senha do AssetTrack"
	html, err := renderTemplate(passwordResetEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	return s.sendHTML([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const passwordResetEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Redefina sua senha do {{.AppName}}</title>
    <style>
        body { font-family: 'Segoe UI', Roboto, Helvetica, sans-serif; line-height: 1.5; color: #222; max-width: 560px; margin: 0 auto; padding: 24px; }
        .header { border-bottom: 2px solid #0d6b5c; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0d6b5c; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #0d6b5c; }
        .warning { background: #fdf6e3; padding: 12px; border-radius: 4px; margin: 16px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Redefinição de senha</h2>

    <p>Olá {{.UserName}},</p>

    <p>Recebemos um pedido para redefinir sua senha. Clique no botão abaixo para criar uma nova senha:</p>

    <p>
        <a href="{{.ResetURL}}" class="button">Redefinir senha</a>
    </p>

    <p>Ou copie e cole este link no seu navegador:</p>
    <p class="link">{{.ResetURL}}</p>

    <div class="warning">
        <strong>Importante:</strong> este link expira em 1 hora.
    </div>

    <div class="footer">
        <p>Se você não pediu a redefinição, pode ignorar este email. Sua senha permanece a mesma.</p>
    </div>
</body>
</html>`
