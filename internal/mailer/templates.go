package mailer

import (
	"fmt"
	"strings"
	"text/template"
)

// Template names. They match the template field carried on the email log
// and the webhook payload.
const (
	TemplateWelcome       = "welcome"
	TemplateDocumentReady = "document_ready"
	TemplateQuizReminder  = "quiz_reminder"
	TemplateComplete      = "onboarding_complete"
	TemplateSlackInvite   = "slack_invite"
	TemplateJiraAccess    = "jira_access"
	TemplateMeeting       = "meeting_scheduled"
)

// TemplateData carries everything the templates may reference. Fields that
// do not apply to a given template are simply left empty.
type TemplateData struct {
	Name       string
	Role       string
	Department string

	// Document is the display name of the document a message refers to.
	Document string

	// SigningURL is included in document_ready messages when known.
	SigningURL string

	// CalendarURL is the booking link for the onboarding call.
	CalendarURL string
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(name + "_subject").Parse(subject)),
		body:    template.Must(template.New(name + "_body").Parse(body)),
	}
}

var emailTemplates = map[string]emailTemplate{
	TemplateWelcome: mustTemplate(TemplateWelcome,
		"Welcome to the Team!",
		"Welcome to the team, {{.Name}}! We're excited to have you join us as {{.Role}} in {{.Department}}.",
	),
	TemplateDocumentReady: mustTemplate(TemplateDocumentReady,
		"{{.Document}} Ready for Review",
		"Hi {{.Name}},\n\nYour {{.Document}} is ready for review and signature.{{if .SigningURL}}\n\nSign here: {{.SigningURL}}{{end}}",
	),
	TemplateQuizReminder: mustTemplate(TemplateQuizReminder,
		"{{.Document}} Quiz Reminder",
		"Hi {{.Name}},\n\nPlease complete your {{.Document}} quiz at your earliest convenience.",
	),
	TemplateComplete: mustTemplate(TemplateComplete,
		"Onboarding Complete!",
		"Congratulations {{.Name}}! You've successfully completed your onboarding. Welcome officially to the team.",
	),
	TemplateSlackInvite: mustTemplate(TemplateSlackInvite,
		"Join Our Slack Workspace",
		"Hi {{.Name}},\n\nYou've been invited to join our Slack workspace.",
	),
	TemplateJiraAccess: mustTemplate(TemplateJiraAccess,
		"Jira Access Granted",
		"Hi {{.Name}},\n\nYour Jira access has been granted.",
	),
	TemplateMeeting: mustTemplate(TemplateMeeting,
		"Schedule Your Onboarding Call",
		"Hi {{.Name}},\n\nPlease schedule your onboarding call at: {{.CalendarURL}}",
	),
}

// Compose renders the named template into a deliverable message.
func Compose(name, to string, data TemplateData) (Message, error) {
	tmpl, ok := emailTemplates[name]
	if !ok {
		return Message{}, fmt.Errorf("mailer: unknown template %q", name)
	}

	var subject, body strings.Builder
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render subject for %q: %w", name, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render body for %q: %w", name, err)
	}

	return Message{
		To:       to,
		Subject:  subject.String(),
		Body:     body.String(),
		Template: name,
	}, nil
}
