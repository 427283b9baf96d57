// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

const (
	mailBodyLimit      = 800
	mailBodyKeep       = 700
	mailAttachmentList = 5
)

var mailRule = strings.Repeat("-", 50)

// message is the subset of an email rendered into evidence text.
type message struct {
	From, To, CC, Date, Subject string
	Body                        string
	Attachments                 []string
}

// render formats a message with its body capped and at most five
// attachment names listed. It reports whether the body was cut.
func (m message) render() (string, bool) {
	lines := []string{
		"From: " + orDefault(m.From, "Unknown"),
		"To: " + orDefault(m.To, "Unknown"),
		"CC: " + orDefault(m.CC, "None"),
		"Date: " + orDefault(m.Date, "Unknown"),
		"Subject: " + orDefault(m.Subject, "No Subject"),
		mailRule,
		"Body:",
	}

	body := strings.TrimSpace(m.Body)
	if body == "" {
		body = "[No body content]"
	}
	body, cut := evidence.Clip(body, mailBodyLimit, mailBodyKeep,
		fmt.Sprintf("\n[EMAIL BODY TRUNCATED - original length: %d chars]", evidence.Length(body)))
	lines = append(lines, body)

	if len(m.Attachments) > 0 {
		lines = append(lines, "\n"+mailRule, "Attachments:")
		for _, name := range m.Attachments[:min(mailAttachmentList, len(m.Attachments))] {
			lines = append(lines, "  - "+name)
		}
		if extra := len(m.Attachments) - mailAttachmentList; extra > 0 {
			lines = append(lines, fmt.Sprintf("  ... and %d more attachments", extra))
		}
	}
	return strings.Join(lines, "\n"), cut
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// readMessage parses one MIME message. enmime converts HTML-only bodies to
// plain text.
func readMessage(r io.Reader) (message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return message{}, fmt.Errorf("failed to parse message: %w", err)
	}
	m := message{
		From:    env.GetHeader("From"),
		To:      env.GetHeader("To"),
		CC:      env.GetHeader("Cc"),
		Date:    env.GetHeader("Date"),
		Subject: env.GetHeader("Subject"),
		Body:    env.Text,
	}
	for _, part := range env.Attachments {
		name := part.FileName
		if name == "" {
			name = part.ContentType
		}
		m.Attachments = append(m.Attachments, name)
	}
	return m, nil
}

// MailDecoder renders single RFC 5322 (.eml) messages.
type MailDecoder struct{}

// NewMailDecoder creates a new MailDecoder.
func NewMailDecoder() *MailDecoder {
	return &MailDecoder{}
}

func (d *MailDecoder) Name() string {
	return "mail"
}

func (d *MailDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatMail}
}

func (d *MailDecoder) Decode(_ context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	f, err := os.Open(source.Path)
	if err != nil {
		return evidence.DecodedText{}, fmt.Errorf("failed to open message: %w", err)
	}
	defer f.Close()

	m, err := readMessage(f)
	if err != nil {
		return evidence.DecodedText{}, err
	}
	text, cut := m.render()
	if cut {
		return evidence.Partial(text, "email body truncated"), nil
	}
	return evidence.OK(text), nil
}

// MailboxDecoder renders every message of an mbox archive.
type MailboxDecoder struct{}

// NewMailboxDecoder creates a new MailboxDecoder.
func NewMailboxDecoder() *MailboxDecoder {
	return &MailboxDecoder{}
}

func (d *MailboxDecoder) Name() string {
	return "mailbox"
}

func (d *MailboxDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatMailbox}
}

func (d *MailboxDecoder) Decode(ctx context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	f, err := os.Open(source.Path)
	if err != nil {
		return evidence.DecodedText{}, fmt.Errorf("failed to open mailbox: %w", err)
	}
	defer f.Close()

	var (
		parts  []string
		failed int
		cut    bool
	)
	r := mbox.NewReader(f)
	for i := 1; ctx.Err() == nil; i++ {
		mr, err := r.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return evidence.DecodedText{}, fmt.Errorf("failed to read mailbox: %w", err)
		}
		parts = append(parts, fmt.Sprintf("\n=== EMAIL %d ===", i))
		m, err := readMessage(mr)
		if err != nil {
			failed++
			parts = append(parts, fmt.Sprintf("[Error reading message: %v]", err))
			continue
		}
		text, bodyCut := m.render()
		cut = cut || bodyCut
		parts = append(parts, text)
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	switch {
	case failed > 0:
		return evidence.Partial(text, fmt.Sprintf("%d unreadable messages", failed)), nil
	case cut:
		return evidence.Partial(text, "email body truncated"), nil
	}
	return evidence.OK(text), nil
}
