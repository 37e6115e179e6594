// Package notify handles run-completion and failure notifications delivered
// through go-pkgz/notify senders (email, slack, webhook)
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
)

//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// Notifier is an alias for notify.Notifier, declared for mock generation
type Notifier interface {
	notify.Notifier
}

// Params controls when and how notifications are made
type Params struct {
	EnabledError       bool
	EnabledCompletion  bool
	ErrorTemplate      string // custom error template file, default used if empty or unreadable
	CompletionTemplate string
	HostName           string
}

// SendersParams holds settings for all supported senders. A sender is activated
// when its destinations are set.
type SendersParams struct {
	FromEmail    string
	ToEmails     []string
	SMTPHost     string
	SMTPPort     int
	SMTPTLS      bool
	SMTPStartTLS bool
	SMTPUsername string
	SMTPPassword string
	SMTPTimeOut  time.Duration

	SlackToken    string
	SlackChannels []string

	WebhookURLs []string
}

// Service delivers rendered messages to all configured destinations
type Service struct {
	Params
	destinations  []notify.Notifier
	fromEmail     string
	toEmail       []string
	slackChannels []string
	webhookURLs   []string
}

// NewService makes notification service with senders built from params.
// Returns nil if no destinations configured at all.
func NewService(p Params, sp SendersParams) *Service {
	res := &Service{
		Params:        p,
		fromEmail:     sp.FromEmail,
		toEmail:       sp.ToEmails,
		slackChannels: sp.SlackChannels,
		webhookURLs:   sp.WebhookURLs,
	}

	if len(sp.ToEmails) > 0 {
		res.destinations = append(res.destinations, notify.NewEmail(notify.SMTPParams{
			Host:        sp.SMTPHost,
			Port:        sp.SMTPPort,
			TLS:         sp.SMTPTLS,
			StartTLS:    sp.SMTPStartTLS,
			Username:    sp.SMTPUsername,
			Password:    sp.SMTPPassword,
			TimeOut:     sp.SMTPTimeOut,
			ContentType: "text/html",
			Charset:     "UTF-8",
		}))
	}

	if sp.SlackToken != "" && len(sp.SlackChannels) > 0 {
		res.destinations = append(res.destinations, notify.NewSlack(sp.SlackToken))
	}

	if len(sp.WebhookURLs) > 0 {
		res.destinations = append(res.destinations, notify.NewWebhook(notify.WebhookParams{
			Timeout: 10 * time.Second,
			Headers: []string{"Content-Type:text/html"},
		}))
	}

	if len(res.destinations) == 0 {
		return nil
	}
	return res
}

// Send delivers the message to every configured destination
func (s *Service) Send(ctx context.Context, subj, text string) error {
	var errs []error
	for _, d := range s.destinations {
		for _, dest := range s.makeDestinations(d.Schema(), subj) {
			log.Printf("[DEBUG] sending %q to %s", subj, dest)
			if err := d.Send(ctx, dest, text); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// makeDestinations builds destination URLs for a sender schema, subject embedded
// where the schema supports it
func (s *Service) makeDestinations(schema, subj string) []string {
	switch schema {
	case "mailto":
		return []string{fmt.Sprintf("mailto:%s?from=%s&subject=%s",
			strings.Join(s.toEmail, ","), s.fromEmail, url.QueryEscape(subj))}
	case "slack":
		res := make([]string, 0, len(s.slackChannels))
		for _, ch := range s.slackChannels {
			res = append(res, fmt.Sprintf("slack:%s?title=%s", ch, url.QueryEscape(subj)))
		}
		return res
	case "http", "https", "webhook":
		return s.webhookURLs
	default:
		log.Printf("[WARN] unsupported notification schema %s", schema)
		return nil
	}
}

// IsOnError status enabling on-error notification
func (s *Service) IsOnError() bool { return s.EnabledError }

// IsOnCompletion status enabling on-completion notification
func (s *Service) IsOnCompletion() bool { return s.EnabledCompletion }

// MakeErrorHTML renders the error message for a failed batch
func (s *Service) MakeErrorHTML(batchDesc, target, errorLog string) (string, error) {
	data := struct {
		Batch  string
		Target string
		TS     time.Time
		Error  string
		Host   string
	}{
		Batch:  batchDesc,
		Target: target,
		TS:     time.Now(),
		Error:  errorLog,
		Host:   s.host(),
	}
	return render(s.ErrorTemplate, defaultErrorTemplate, data)
}

// MakeCompletionHTML renders the message for a completed batch
func (s *Service) MakeCompletionHTML(batchDesc, target string) (string, error) {
	data := struct {
		Batch  string
		Target string
		TS     time.Time
		Host   string
	}{
		Batch:  batchDesc,
		Target: target,
		TS:     time.Now(),
		Host:   s.host(),
	}
	return render(s.CompletionTemplate, defaultCompletionTemplate, data)
}

func (s *Service) host() string {
	if s.HostName != "" {
		return s.HostName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// render applies the custom template file if set and loadable, default otherwise
func render(file, fallback string, data any) (string, error) {
	tmplText := fallback
	if file != "" {
		body, err := os.ReadFile(file) // nolint gosec // template path set by the operator
		if err != nil {
			log.Printf("[WARN] can't read template %s, falling back to default, %v", file, err)
		} else {
			tmplText = string(body)
		}
	}

	t, err := template.New("msg").Parse(tmplText)
	if err != nil {
		if tmplText == fallback {
			return "", fmt.Errorf("can't parse message template: %w", err)
		}
		log.Printf("[WARN] can't parse custom template, falling back to default, %v", err)
		if t, err = template.New("msg").Parse(fallback); err != nil {
			return "", fmt.Errorf("can't parse message template: %w", err)
		}
	}

	buf := bytes.Buffer{}
	if err = t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

var defaultErrorTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body {
				font-family: "Arial";
				font-size: 1.0em;
			}
			ul {
				margin-top: -0.5em;
				margin-left: -0.5em;
			}
			pre {
				padding: 0.6em;
				font-size: 0.7em;
				background-color: #E8E2A0;
				font-family: "Menlo";
				overflow-x: auto;
				white-space: pre-wrap;
				white-space: -moz-pre-wrap;
				white-space: -pre-wrap;
				white-space: -o-pre-wrap;
				word-wrap: break-word;
			}
			.bold {
				color: #882828;
				font-weight: 900;
			}
		</style>
	</head>

	<body>
		<p>Scrapn batch failed on <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Batch: <span class="bold">{{.Batch}}</span></li>
			<li>Target: <span class="bold">{{.Target}}</span></li>
		</ul>

		<pre>
{{.Error}}
		</pre>
	</body>
</html>
`

var defaultCompletionTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body {
				font-family: "Arial";
				font-size: 1.0em;
			}
			ul {
				margin-top: -0.5em;
				margin-left: -0.5em;
			}
			.bold {
				color: #288828;
				font-weight: 900;
			}
		</style>
	</head>

	<body>
		<p>Scrapn batch completed on <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Batch: <span class="bold">{{.Batch}}</span></li>
			<li>Target: <span class="bold">{{.Target}}</span></li>
		</ul>
	</body>
</html>
`
