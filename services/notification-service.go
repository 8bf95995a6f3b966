package services

import (
	"fmt"
	"strings"

	"telecom-project/tasks-service/logging"
	"telecom-project/tasks-service/models"
	"telecom-project/tasks-service/utils"

	"github.com/sony/gobreaker"
)

// EmailMessage is one composed notification, kept separate from transport so
// composition can be tested without an SMTP server.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// StatusChange describes one applied status transition of an update request.
type StatusChange struct {
	Old     models.TaskStatus
	New     models.TaskStatus
	Comment string
}

// NotificationService emails task participants about status changes. Dispatch
// is best-effort: failures are logged and never surfaced to the caller.
type NotificationService struct {
	breaker *gobreaker.CircuitBreaker
	baseURL string
	send    func(to, subject, body string) error
}

func NewNotificationService(breaker *gobreaker.CircuitBreaker, baseURL string) *NotificationService {
	return &NotificationService{
		breaker: breaker,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		send:    utils.SendEmail,
	}
}

// ComposeStatusEmails builds one message per distinct non-empty participant
// email. The role label is picked by comparing the address against the three
// participant fields in order author, initiator, executor, so a person
// filling two roles is addressed by the first matching one.
func (ns *NotificationService) ComposeStatusEmails(task *models.Task, oldStatus, newStatus models.TaskStatus, actorName, comment string) []EmailMessage {
	seen := make(map[string]bool)
	var messages []EmailMessage

	for _, email := range []string{task.AuthorEmail, task.InitiatorEmail, task.ExecutorEmail} {
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		role := ns.roleLabelFor(task, email)
		subject := fmt.Sprintf("Task %s status changed to %s", task.TaskID, newStatus)
		link := ns.baseURL + "/tasks/" + strings.ToLower(task.TaskID)

		var b strings.Builder
		b.WriteString(fmt.Sprintf("<p>Hello, you receive this as the %s of task <b>%s | %s</b>.</p>", role, task.TaskName, task.BsNumber))
		b.WriteString(fmt.Sprintf("<p>Status changed from <b>%s</b> to <b>%s</b> by %s.</p>", oldStatus, newStatus, actorName))
		if comment != "" {
			b.WriteString(fmt.Sprintf("<p>Comment: %s</p>", comment))
		}
		b.WriteString(fmt.Sprintf(`<p><a href="%s">Open the task</a></p>`, link))

		messages = append(messages, EmailMessage{To: email, Subject: subject, Body: b.String()})
	}

	return messages
}

func (ns *NotificationService) roleLabelFor(task *models.Task, email string) string {
	switch email {
	case task.AuthorEmail:
		return "author"
	case task.InitiatorEmail:
		return "initiator"
	case task.ExecutorEmail:
		return "executor"
	}
	return "participant"
}

// NotifyStatusChanged sends the composed messages through the circuit
// breaker, sequentially. Errors are swallowed after logging since the task
// document is already saved.
func (ns *NotificationService) NotifyStatusChanged(task *models.Task, oldStatus, newStatus models.TaskStatus, actorName, comment string) {
	messages := ns.ComposeStatusEmails(task, oldStatus, newStatus, actorName, comment)

	for _, msg := range messages {
		m := msg
		_, err := ns.breaker.Execute(func() (interface{}, error) {
			return nil, ns.send(m.To, m.Subject, m.Body)
		})
		if err != nil {
			logging.Logger.Errorf("Event ID: NOTIFY_EMAIL_FAILED, Description: Failed to send status notification for task %s to %s: %v", task.TaskID, m.To, err)
			continue
		}
		logging.Logger.Infof("Event ID: NOTIFY_EMAIL_SENT, Description: Status notification for task %s sent to %s", task.TaskID, m.To)
	}
}
