package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/rockbears/log"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Configuration is the exposed SMTP configuration.
type Configuration struct {
	Enable   bool   `toml:"enable" default:"false" json:"enable"`
	Host     string `toml:"host" default:"" json:"host"`
	Port     string `toml:"port" default:"25" json:"port"`
	TLS      bool   `toml:"tls" default:"false" json:"tls"`
	User     string `toml:"user" default:"" json:"user"`
	Password string `toml:"password" default:"" json:"-"`
	From     string `toml:"from" default:"pkgdb@fedoraproject.org" json:"from"`
}

// Notifier delivers human readable summaries of state changes. Delivery is
// fire and forget: a failure must never roll back the state change it
// describes.
type Notifier interface {
	Send(ctx context.Context, recipients []string, subject, body string)
}

// NoopNotifier drops every message, used in tests and when smtp is disabled.
type NoopNotifier struct{}

func (NoopNotifier) Send(_ context.Context, _ []string, _, _ string) {}

// New returns a Notifier on given configuration.
func New(conf Configuration) Notifier {
	if !conf.Enable || conf.Host == "" {
		return NoopNotifier{}
	}
	return &smtpNotifier{conf: conf}
}

type smtpNotifier struct {
	conf Configuration
}

const mailTemplate = `From: {{.From}}
To: {{.To}}
Subject: {{.Subject}}

{{.Body}}
`

// Send delivers asynchronously, one goroutine per message.
func (n *smtpNotifier) Send(ctx context.Context, recipients []string, subject, body string) {
	go func() {
		for _, to := range recipients {
			if err := n.sendMail(to, subject, body); err != nil {
				log.Error(ctx, "mail> cannot send notification to %s: %v", to, err)
			}
		}
	}()
}

func (n *smtpNotifier) sendMail(to, subject, body string) error {
	tmpl, err := template.New("mail").Parse(mailTemplate)
	if err != nil {
		return sdk.WithStack(err)
	}
	var b bytes.Buffer
	if err := tmpl.Execute(&b, struct {
		From    string
		To      string
		Subject string
		Body    string
	}{n.conf.From, to, subject, body}); err != nil {
		return sdk.WithStack(err)
	}

	c, err := n.smtpClient()
	if err != nil {
		return err
	}
	defer c.Close() // nolint

	if err := c.Mail(n.conf.From); err != nil {
		return sdk.WithStack(err)
	}
	if err := c.Rcpt(to); err != nil {
		return sdk.WithStack(err)
	}
	w, err := c.Data()
	if err != nil {
		return sdk.WithStack(err)
	}
	if _, err := w.Write(b.Bytes()); err != nil {
		return sdk.WithStack(err)
	}
	if err := w.Close(); err != nil {
		return sdk.WithStack(err)
	}
	return sdk.WithStack(c.Quit())
}

func (n *smtpNotifier) smtpClient() (*smtp.Client, error) {
	servername := fmt.Sprintf("%s:%s", n.conf.Host, n.conf.Port)

	var c *smtp.Client
	var err error
	if n.conf.TLS {
		// smtp servers on 465 require an ssl connection from the very
		// beginning, no starttls
		conn, errc := tls.Dial("tcp", servername, &tls.Config{ServerName: n.conf.Host})
		if errc != nil {
			return nil, sdk.WithStack(errc)
		}
		c, err = smtp.NewClient(conn, n.conf.Host)
	} else {
		c, err = smtp.Dial(servername)
	}
	if err != nil {
		return nil, sdk.WithStack(err)
	}

	if n.conf.User != "" && n.conf.Password != "" {
		auth := smtp.PlainAuth("", n.conf.User, n.conf.Password, n.conf.Host)
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				_ = c.Close()
				return nil, sdk.WithStack(err)
			}
		}
	}
	return c, nil
}

// Status returns a monitoring status line on the smtp configuration.
func Status(conf Configuration) sdk.MonitoringStatusLine {
	if !conf.Enable || conf.Host == "" {
		return sdk.MonitoringStatusLine{Component: "SMTP", Value: "disabled", Status: sdk.MonitoringStatusWarn}
	}
	n := &smtpNotifier{conf: conf}
	c, err := n.smtpClient()
	if err != nil {
		return sdk.MonitoringStatusLine{Component: "SMTP", Value: fmt.Sprintf("KO (%v)", err), Status: sdk.MonitoringStatusAlert}
	}
	_ = c.Close()
	return sdk.MonitoringStatusLine{Component: "SMTP", Value: "OK", Status: sdk.MonitoringStatusOK}
}
