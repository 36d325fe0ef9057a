package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const implicitTLSPort = 465

// Message is one print job handed to the printer mailbox
type Message struct {
	Attachment []byte
	FileName   string
	To         string
	Subject    string
}

// Receipt identifies a delivered message
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// TransportError is returned when the relay could not deliver a message.
// The job can be resubmitted.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "mail " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err came from the mail relay
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Config holds the SMTP relay settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// sender is the part of *mail.Client the transport uses
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Transport delivers print jobs over SMTP
type Transport struct {
	from   string
	client sender
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Transport. Port 465 uses implicit TLS, any other port
// upgrades with STARTTLS when the server offers it.
func New(cfg Config) (*Transport, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer: sender address is required")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: create client: %w", err)
	}
	return newTransport(cfg.From, client, cfg.Logger), nil
}

func newTransport(from string, client sender, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		from:   from,
		client: client,
		now:    time.Now,
		logger: logger,
	}
}

// Send mails msg with its PDF attached
func (t *Transport) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if len(msg.Attachment) == 0 {
		return nil, errors.New("mailer: attachment is empty")
	}
	if msg.To == "" {
		return nil, errors.New("mailer: recipient is required")
	}

	m, err := t.build(msg)
	if err != nil {
		return nil, err
	}

	start := t.now()
	if err := t.client.DialAndSendWithContext(ctx, m); err != nil {
		t.logger.Error("failed to send print job",
			zap.String("to", msg.To),
			zap.String("file", msg.FileName),
			zap.Error(err))
		return nil, &TransportError{Op: "send", Err: err}
	}

	receipt := &Receipt{SentAt: start}
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		receipt.MessageID = ids[0]
	}
	t.logger.Info("print job sent",
		zap.String("to", msg.To),
		zap.String("message_id", receipt.MessageID),
		zap.Int("bytes", len(msg.Attachment)))
	return receipt, nil
}

func (t *Transport) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(t.from); err != nil {
		return nil, fmt.Errorf("mailer: invalid sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mailer: invalid recipient: %w", err)
	}
	name := AttachmentName(msg.FileName)
	subject := msg.Subject
	if subject == "" {
		subject = "Print: " + name
	}
	m.Subject(subject)
	m.SetMessageID()
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, "Print job: "+name)

	if err := m.AttachReader(name, bytes.NewReader(msg.Attachment),
		mail.WithFileContentType(mail.ContentType("application/pdf"))); err != nil {
		return nil, fmt.Errorf("mailer: attach %s: %w", name, err)
	}
	return m, nil
}

// BuildSubject formats the subject line printers use to label jobs
func BuildSubject(fileName string, copies int, color bool) string {
	parts := []string{"Print: " + fileName}
	if copies > 0 {
		parts = append(parts, fmt.Sprintf("Copies: %d", copies))
	}
	if color {
		parts = append(parts, "Color: Color")
	} else {
		parts = append(parts, "Color: B&W")
	}
	return strings.Join(parts, " | ")
}

// AttachmentName makes sure the attachment carries a .pdf extension
func AttachmentName(fileName string) string {
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "document"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
