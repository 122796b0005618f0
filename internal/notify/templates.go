package notify

import (
	"fmt"
	"strings"

	"homeline/internal/domain"
)

func render(ev Event, linkBase string) (title, message string) {
	name := ev.Recipient.Name
	if name == "" {
		name = ev.Recipient.ID
	}
	switch ev.Type {
	case domain.NotifyTaskAssigned:
		title = "New task assigned"
		message = fmt.Sprintf("%s, you have been assigned: %s (due %s)", name, taskTitle(ev), dueDate(ev))
	case domain.NotifyTaskDueSoon:
		title = "Task due soon"
		message = fmt.Sprintf("%s, task %q is due %s", name, taskTitle(ev), dueDate(ev))
	case domain.NotifyTaskOverdue:
		title = "Task overdue"
		message = fmt.Sprintf("%s, task %q was due %s and is overdue", name, taskTitle(ev), dueDate(ev))
	case domain.NotifyTaskCompleted:
		title = "Task completed"
		message = fmt.Sprintf("Task %q was completed. %s", taskTitle(ev), ev.Detail)
	case domain.NotifyLeadAssigned:
		title = "New lead assigned"
		message = fmt.Sprintf("%s, lead %s is now yours", name, leadName(ev))
	case domain.NotifyLeadStatusChange:
		title = "Lead status changed"
		message = fmt.Sprintf("Lead %s: %s", leadName(ev), ev.Detail)
	case domain.NotifyDealStatusChange:
		title = "Deal status changed"
		message = fmt.Sprintf("Deal %s: %s", dealLabel(ev), ev.Detail)
	default:
		title = ev.Type
		message = ev.Detail
	}
	if link := deepLink(ev, linkBase); link != "" {
		message += "\n" + link
	}
	return title, strings.TrimSpace(message)
}

func deepLink(ev Event, base string) string {
	if base == "" {
		return ""
	}
	ref := refFor(ev)
	if ref.Kind == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), ref.Kind, ref.ID)
}

func taskTitle(ev Event) string {
	if ev.Task == nil {
		return ""
	}
	return ev.Task.Title
}

func dueDate(ev Event) string {
	if ev.Task == nil {
		return ""
	}
	return ev.Task.DueDate
}

func leadName(ev Event) string {
	if ev.Lead == nil {
		return ""
	}
	return strings.TrimSpace(ev.Lead.FirstName + " " + ev.Lead.LastName)
}

func dealLabel(ev Event) string {
	if ev.Deal == nil {
		return ""
	}
	return fmt.Sprintf("%s %.0f %s", ev.Deal.ID, ev.Deal.DealValue, ev.Deal.Currency)
}
