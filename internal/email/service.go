package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/mail"
	"net/url"
	texttemplate "text/template"
	"time"

	"github.com/redmonkez12/ms-auth/internal/config"
	"github.com/redmonkez12/ms-auth/internal/logging"
)

// sendFunc delivers one raw RFC 5322 message.
type sendFunc func(ctx context.Context, from string, to []string, msg []byte) error

type Service struct {
	from           string
	resetURL       string
	productName    string
	supportAddress string
	send           sendFunc
	now            func() time.Time
}

// NewService returns an SMTP-backed mailer.
func NewService(cfg config.EmailConfig) *Service {
	transport := &smtpTransport{
		host:        cfg.SMTPHost,
		port:        cfg.SMTPPort,
		username:    cfg.SMTPUser,
		password:    cfg.SMTPPassword,
		implicitTLS: cfg.ImplicitTLS,
	}
	return newService(cfg, transport.Send)
}

func newService(cfg config.EmailConfig, send sendFunc) *Service {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Service{
		from:           from,
		resetURL:       cfg.ResetURL,
		productName:    cfg.ProductName,
		supportAddress: cfg.SupportAddress,
		send:           send,
		now:            time.Now,
	}
}

// resetMail is the data rendered into both password reset bodies.
type resetMail struct {
	ProductName    string
	OTP            string
	ResetLink      string
	ValidFor       string
	SupportAddress string
}

// SendPasswordResetEmail mails the OTP and the reset link of one reset window.
// ctx bounds the whole SMTP exchange.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, otp, token string, validFor time.Duration) error {
	logger := logging.GetLoggerFromContext(ctx)

	link, err := s.resetLink(token)
	if err != nil {
		return fmt.Errorf("build reset link: %w", err)
	}

	data := resetMail{
		ProductName:    s.productName,
		OTP:            otp,
		ResetLink:      link,
		ValidFor:       formatValidity(validFor),
		SupportAddress: s.supportAddress,
	}

	textBody, htmlBody, err := renderPasswordReset(data)
	if err != nil {
		logger.Error("failed to render password reset email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	msg, err := buildMessage(message{
		From:    s.from,
		To:      toEmail,
		Subject: "Reset your password",
		Date:    s.now(),
		Text:    textBody,
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	envelopeFrom, err := mail.ParseAddress(s.from)
	if err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}

	if err := s.send(ctx, envelopeFrom.Address, []string{toEmail}, msg); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

// resetLink appends the token as the token query parameter of the reset URL.
func (s *Service) resetLink(token string) (string, error) {
	u, err := url.Parse(s.resetURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// formatValidity renders d in whole minutes when it divides evenly, otherwise
// in whole seconds rounded up.
func formatValidity(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return plural(int(d/time.Minute), "minute")
	}
	seconds := int((d + time.Second - 1) / time.Second)
	return plural(seconds, "second")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var passwordResetText = texttemplate.Must(texttemplate.New("passwordResetText").Parse(`{{.ProductName}}: password reset

We received a request to reset your password.

Your one-time code is: {{.OTP}}

Or open this link to choose a new password:
{{.ResetLink}}

The code and the link expire in {{.ValidFor}}. Requesting a new reset makes them invalid.

If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.
{{- if .SupportAddress}}

Questions? Contact {{.SupportAddress}}.
{{- end}}
`))

var passwordResetHTML = htmltemplate.Must(htmltemplate.New("passwordResetHTML").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .code {
            font-size: 28px;
            letter-spacing: 6px;
            font-weight: bold;
            text-align: center;
            margin: 20px 0;
        }
        .button {
            display: inline-block;
            background-color: #4F46E5;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.ProductName}}</h1>
    </div>
    <div class="content">
        <h2>Reset your password</h2>
        <p>Enter this one-time code to choose a new password:</p>
        <p class="code">{{.OTP}}</p>

        <p>Or click the button below.</p>
        <a href="{{.ResetLink}}" class="button" style="color: white !important;">Reset Password</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #4F46E5;">{{.ResetLink}}</p>

        <p style="margin-top: 30px;">If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
    </div>
    <div class="footer">
        <p>The code and the link expire in {{.ValidFor}}.</p>
        {{- if .SupportAddress}}
        <p>Questions? Contact <a href="mailto:{{.SupportAddress}}">{{.SupportAddress}}</a>.</p>
        {{- end}}
    </div>
</body>
</html>
`))

func renderPasswordReset(data resetMail) (string, string, error) {
	var text, html bytes.Buffer
	if err := passwordResetText.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("execute text template: %w", err)
	}
	if err := passwordResetHTML.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("execute html template: %w", err)
	}
	return text.String(), html.String(), nil
}
