// Package notify sends harvest reports to the schedule's contacts.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/CMSgov/xc-harvester/conf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

type SMTPConfig struct {
	Host     string `conf:"SMTP_HOST"`
	Port     int    `conf:"SMTP_PORT" conf_default:"25"`
	Username string `conf:"SMTP_USERNAME"`
	Password string `conf:"SMTP_PASSWORD"`
	From     string `conf:"SMTP_FROM" conf_default:"mst@localhost"`
}

// New returns an SMTP notifier when SMTP_HOST is configured, otherwise one
// that only logs.
func New(logger logrus.FieldLogger) (Notifier, error) {
	var cfg SMTPConfig
	if err := conf.Checkout(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load SMTP configuration")
	}
	if cfg.Host == "" {
		return &LogNotifier{Logger: logger}, nil
	}
	return NewSMTP(cfg, logger), nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPNotifier struct {
	cfg  SMTPConfig
	log  logrus.FieldLogger
	send sendFunc
}

func NewSMTP(cfg SMTPConfig, logger logrus.FieldLogger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, log: logger, send: smtp.SendMail}
}

func (n *SMTPNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		n.log.Debugf("No recipients for %q, not sending", subject)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, auth, n.cfg.From, to, message(n.cfg.From, to, subject, body)); err != nil {
		return errors.Wrapf(err, "failed to send %q to %s", subject, strings.Join(to, ","))
	}
	n.log.Infof("Sent %q to %s", subject, strings.Join(to, ","))
	return nil
}

func message(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogNotifier writes reports to the log instead of mailing them.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (n *LogNotifier) Send(_ context.Context, to []string, subject, body string) error {
	n.Logger.WithFields(logrus.Fields{
		"to":      strings.Join(to, ","),
		"subject": subject,
	}).Info(body)
	return nil
}

// Recipients splits a comma separated address list.
func Recipients(list string) []string {
	var out []string
	for _, a := range strings.Split(list, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
