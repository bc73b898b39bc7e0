package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	"invoicehub/internal/config"
	"invoicehub/internal/models"
	"invoicehub/pkg/logger"
	"invoicehub/pkg/metrics"

	"go.uber.org/zap"
)

// EmailMessage is a plain-text email handed to a Mailer.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMSSender hands a text message to an SMS provider.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// NotificationService composes and dispatches customer and user notifications.
type NotificationService interface {
	SendInvoiceEmail(ctx context.Context, to string, msg InvoiceMessage) error
	// SendInvoiceSMS reports whether the provider accepted the message. It
	// never fails the caller.
	SendInvoiceSMS(ctx context.Context, to string, msg InvoiceMessage) bool
	SendPasswordResetEmail(ctx context.Context, to, name, link string, expiresAt time.Time) error
}

// InvoiceMessage carries what customer-facing invoice notifications show.
type InvoiceMessage struct {
	CustomerName  string
	CompanyName   string
	InvoiceNumber string
	Amount        string
	DueDate       string
	Link          string
}

var (
	invoiceEmailTmpl = template.Must(template.New("invoice").Parse(`Hello {{.CustomerName}},

{{.CompanyName}} has sent you invoice {{.InvoiceNumber}} for {{.Amount}}.{{if .DueDate}}
Payment is due by {{.DueDate}}.{{end}}

View the invoice: {{.Link}}
`))

	resetEmailTmpl = template.Must(template.New("reset").Parse(`Hello {{.Name}},

We received a request to reset your password. Use the link below to choose a new one:

{{.Link}}

The link expires at {{.ExpiresAt}}. If you did not ask for this, you can ignore this email.
`))
)

type notificationService struct {
	mailer Mailer
	sms    SMSSender
}

func NewNotificationService(mailer Mailer, sms SMSSender) NotificationService {
	return &notificationService{mailer: mailer, sms: sms}
}

func (s *notificationService) SendInvoiceEmail(ctx context.Context, to string, msg InvoiceMessage) error {
	var body bytes.Buffer
	if err := invoiceEmailTmpl.Execute(&body, msg); err != nil {
		return err
	}
	err := s.mailer.Send(ctx, EmailMessage{
		To:      to,
		Subject: singleLine(fmt.Sprintf("Invoice %s from %s", msg.InvoiceNumber, msg.CompanyName)),
		Body:    body.String(),
	})
	recordNotification("email", err)
	return err
}

func (s *notificationService) SendInvoiceSMS(ctx context.Context, to string, msg InvoiceMessage) bool {
	if s.sms == nil || strings.TrimSpace(to) == "" {
		return false
	}
	text := FormatInvoiceSMS(msg.CustomerName, msg.InvoiceNumber, msg.Amount, msg.CompanyName, msg.Link)
	err := s.sms.SendSMS(ctx, to, text)
	recordNotification("sms", err)
	if err != nil {
		logger.FromContext(ctx).Warn("invoice sms not delivered",
			zap.String("invoice_number", msg.InvoiceNumber),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *notificationService) SendPasswordResetEmail(ctx context.Context, to, name, link string, expiresAt time.Time) error {
	if name == "" {
		name = to
	}
	var body bytes.Buffer
	err := resetEmailTmpl.Execute(&body, map[string]string{
		"Name":      name,
		"Link":      link,
		"ExpiresAt": expiresAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, EmailMessage{To: to, Subject: "Reset your password", Body: body.String()})
	recordNotification("email", err)
	return err
}

func recordNotification(channel string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	metrics.NotificationsSent.WithLabelValues(channel, result).Inc()
}

// FormatInvoiceSMS builds the single-line text sent to a customer for an invoice.
func FormatInvoiceSMS(customerName, invoiceNumber, amount, companyName, link string) string {
	text := fmt.Sprintf("Hi %s, %s sent you invoice %s for %s. View: %s",
		customerName, companyName, invoiceNumber, amount, link)
	return singleLine(text)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatAmount renders an amount with its currency code, e.g. "USD 120.00".
func FormatAmount(inv *models.Invoice) string {
	return inv.Currency + " " + inv.Total.StringFixed(2)
}

type smtpMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPMailer returns a Mailer that delivers through an SMTP relay.
func NewSMTPMailer(cfg config.SMTPConfig) Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &smtpMailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth: auth,
		from: cfg.From,
	}
}

func (m *smtpMailer) Send(ctx context.Context, msg EmailMessage) error {
	to := headerValue(msg.To)
	raw := buildMessage(m.from, msg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(m.addr, m.auth, headerValue(m.from), []string{to}, raw)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildMessage renders the RFC 5322 message. Header values are folded onto one
// line and the subject is Q-encoded, so no caller-supplied text can start a
// new header.
func buildMessage(from string, msg EmailMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(from))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerValue(v string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, v)
}

type logMailer struct {
	includeBody bool
}

// NewLogMailer returns a Mailer that only logs. Bodies, which may hold reset
// links, are logged only when includeBody is set (development).
func NewLogMailer(includeBody bool) Mailer {
	return &logMailer{includeBody: includeBody}
}

func (m *logMailer) Send(ctx context.Context, msg EmailMessage) error {
	fields := []zap.Field{zap.String("to", msg.To), zap.String("subject", msg.Subject)}
	if m.includeBody {
		fields = append(fields, zap.String("body", msg.Body))
	}
	logger.FromContext(ctx).Info("email not sent, no smtp relay configured", fields...)
	return nil
}

type httpSMSSender struct {
	apiURL     string
	accountSID string
	authToken  string
	from       string
	http       *http.Client
}

// NewHTTPSMSSender posts messages as form data to an SMS provider API using
// basic auth.
func NewHTTPSMSSender(cfg config.SMSConfig) SMSSender {
	return &httpSMSSender{
		apiURL:     cfg.APIURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *httpSMSSender) SendSMS(ctx context.Context, to, message string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	return nil
}
