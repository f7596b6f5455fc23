package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/url"

	"github.com/dajohi/goemail"
)

// SMTPNotifier sends transactional mail through an SMTP relay.
type SMTPNotifier struct {
	smtp     *goemail.SMTP
	fromAddr string
	fromName string
}

func NewSMTPNotifier(host string, port int, username, password, fromAddr, fromName string) (*SMTPNotifier, error) {
	raw := fmt.Sprintf("smtps://%s:%s@%s:%d", url.QueryEscape(username), url.QueryEscape(password), host, port)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse smtp url: %w", err)
	}
	smtp, err := goemail.NewSMTP(u.String(), &tls.Config{})
	if err != nil {
		return nil, fmt.Errorf("smtp setup: %w", err)
	}
	return &SMTPNotifier{smtp: smtp, fromAddr: fromAddr, fromName: fromName}, nil
}

func (n *SMTPNotifier) send(subject, body string, recipient string) error {
	msg := goemail.NewMessage(n.fromAddr, subject, body)
	msg.SetName(n.fromName)
	msg.AddBCC(recipient)
	return n.smtp.Send(msg)
}

func (n *SMTPNotifier) SendWelcome(_ context.Context, m WelcomeNotification) error {
	body, err := templateString(welcomeTmpl, m)
	if err != nil {
		return err
	}
	return n.send("Welcome to CampusLink", body, m.Email)
}

func (n *SMTPNotifier) SendPasswordReset(_ context.Context, m PasswordResetNotification) error {
	body, err := templateString(passwordResetTmpl, m)
	if err != nil {
		return err
	}
	return n.send("CampusLink Password Reset", body, m.Email)
}

func (n *SMTPNotifier) SendEmailVerification(_ context.Context, m VerificationNotification) error {
	body, err := templateString(verifyEmailTmpl, m)
	if err != nil {
		return err
	}
	return n.send("Verify Your CampusLink Email", body, m.Email)
}

func (n *SMTPNotifier) SendComplaintUpdate(_ context.Context, m ComplaintUpdateNotification) error {
	body, err := templateString(complaintUpdateTmpl, m)
	if err != nil {
		return err
	}
	return n.send(fmt.Sprintf("Complaint #%d Update", m.ComplaintID), body, m.Email)
}

func templateString(t *template.Template, data any) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

var welcomeTmpl = template.Must(template.New("welcome").Parse(`
Hi {{.Name}},

Welcome to CampusLink! Your account is ready.

Log in to see campus announcements, raise hostel complaints, and keep your
profile up to date.

If you did not create this account, please contact the campus office.
`))

var passwordResetTmpl = template.Must(template.New("password_reset").Parse(`
Hi {{.Name}},

We received a request to reset your CampusLink password. Click the link below
to choose a new one. The link expires at {{.ExpiresAt.Format "15:04 MST, Jan 2"}}.

{{.ResetURL}}

If you did not request a reset, you can safely ignore this email; your
password has not changed.
`))

var verifyEmailTmpl = template.Must(template.New("verify_email").Parse(`
Hi {{.Name}},

Click the link below to verify your CampusLink email address. The link
expires at {{.ExpiresAt.Format "15:04 MST, Jan 2"}}.

{{.VerifyURL}}

You are receiving this notification because this address was used to register
a CampusLink account. If you did not perform this action, ignore this email.
`))

var complaintUpdateTmpl = template.Must(template.New("complaint_update").Parse(`
Hi {{.Name}},

Your complaint "{{.ComplaintTitle}}" (#{{.ComplaintID}}) has been updated.

New status: {{.Status}}
{{- if .Note}}
Note from staff: {{.Note}}
{{- end}}

You can view the full history in CampusLink.
`))
