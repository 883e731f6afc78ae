package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/hris-api/pkg/config"
)

// ErrNoRecipients is returned when a message has no valid To address.
var ErrNoRecipients = errors.New("mailer: at least one recipient required")

// Attachment is a file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is an outgoing email. At least one of Text or HTML should be set.
type Message struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer relays messages through an SMTP server.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
	now  func() time.Time
}

// NewSMTPMailer builds a mailer; PLAIN auth is used only when a username is set.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: cfg.Host + ":" + strconv.Itoa(cfg.Port),
		from: cfg.From,
		auth: auth,
		send: smtp.SendMail,
		now:  time.Now,
	}
}

// Send validates recipients, builds a MIME message and hands it to the server.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := normalizeRecipients(msg.To)
	if err != nil {
		return err
	}
	msg.To = to
	raw, err := Build(m.from, msg, m.now())
	if err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, to, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func normalizeRecipients(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return nil, fmt.Errorf("mailer: invalid recipient %q: %w", r, err)
		}
		out = append(out, addr.Address)
	}
	if len(out) == 0 {
		return nil, ErrNoRecipients
	}
	return out, nil
}

// Build renders msg as a multipart/mixed RFC 5322 message.
func Build(from string, msg Message, date time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := &bytes.Buffer{}
	fmt.Fprintf(header, "From: %s\r\n", from)
	fmt.Fprintf(header, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(header, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(header, "Date: %s\r\n", date.Format(time.RFC1123Z))
	header.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(header, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	if err := writeBody(writer, msg); err != nil {
		return nil, err
	}
	for _, att := range msg.Attachments {
		if err := writeAttachment(writer, att); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return append(header.Bytes(), buf.Bytes()...), nil
}

func writeBody(writer *multipart.Writer, msg Message) error {
	text := msg.Text
	if text == "" && msg.HTML == "" {
		text = " "
	}
	if text != "" {
		if err := writeTextPart(writer, "text/plain; charset=utf-8", text); err != nil {
			return err
		}
	}
	if msg.HTML != "" {
		return writeTextPart(writer, "text/html; charset=utf-8", msg.HTML)
	}
	return nil
}

func writeTextPart(writer *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "base64")
	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(wrapBase64([]byte(body)))
	return err
}

func writeAttachment(writer *multipart.Writer, att Attachment) error {
	if att.Filename == "" {
		return errors.New("mailer: attachment filename required")
	}
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "base64")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(wrapBase64(att.Content))
	return err
}

func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	out := &bytes.Buffer{}
	for len(encoded) > 76 {
		out.WriteString(encoded[:76])
		out.WriteString("\r\n")
		encoded = encoded[76:]
	}
	out.WriteString(encoded)
	out.WriteString("\r\n")
	return out.Bytes()
}
