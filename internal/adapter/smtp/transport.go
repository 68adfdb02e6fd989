// Package smtp delivers composed messages over SMTP with STARTTLS, or
// simulates delivery when real sending is disabled.
package smtp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
)

// Transport implements domain.Transport over SMTP. When simulate is true,
// Send logs the message and reports success without network I/O.
type Transport struct {
	host     string
	port     int
	from     string
	password string
	cvPath   string
	simulate bool
	log      *slog.Logger

	// sendMail is swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a transport. cvPath may be empty; a missing CV file is logged
// and the message goes out without the attachment.
func New(host string, port int, from, password, cvPath string, simulate bool, logger *slog.Logger) *Transport {
	return &Transport{
		host:     host,
		port:     port,
		from:     from,
		password: password,
		cvPath:   cvPath,
		simulate: simulate,
		log:      logger,
		sendMail: smtp.SendMail,
	}
}

// Send delivers one message. The returned error is the only failure signal;
// there is no partial-progress reporting.
func (t *Transport) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.simulate {
		t.log.Info("simulated sending email", "to", to, "subject", subject)
		return nil
	}

	msg, err := t.buildMessage(to, subject, body)
	if err != nil {
		return fmt.Errorf("build message for %s: %w", to, err)
	}

	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	auth := smtp.PlainAuth("", t.from, t.password, t.host)
	if err := t.sendMail(addr, auth, t.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}

	t.log.Info("email sent", "to", to, "subject", subject)
	return nil
}

// buildMessage assembles a multipart MIME message with the text body and,
// when available, the CV as a PDF attachment.
func (t *Transport) buildMessage(to, subject, body string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", t.from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := w.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return nil, err
	}

	if err := t.attachCV(w); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Transport) attachCV(w *multipart.Writer) error {
	if t.cvPath == "" {
		return nil
	}

	data, err := os.ReadFile(t.cvPath)
	if err != nil {
		t.log.Warn("CV file not found, sending without attachment", "path", t.cvPath)
		return nil
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "application/pdf")
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename=%q`, filepath.Base(t.cvPath)))

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	_, err = part.Write(encoded)
	return err
}
