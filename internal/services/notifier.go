package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"clientflow/internal/models"
	"clientflow/internal/repository"
)

// Notifier sends post-commit emails about lifecycle transitions. Delivery
// is best-effort: failures are logged and never surfaced to the caller,
// and nothing here runs inside the primary transaction.
type Notifier struct {
	mailer   EmailSender
	projects repository.ProjectRepository
	users    repository.UserRepository
}

func NewNotifier(mailer EmailSender, projects repository.ProjectRepository, users repository.UserRepository) *Notifier {
	return &Notifier{mailer: mailer, projects: projects, users: users}
}

// MilestoneSubmitted tells the client there is work to review.
func (n *Notifier) MilestoneSubmitted(m *models.Milestone) {
	go n.deliver(m.ProjectID, true,
		"Work submitted for your review",
		fmt.Sprintf("Milestone %q has been submitted for your review.", m.Title))
}

// MilestoneApproved tells the agency the client accepted the work.
func (n *Notifier) MilestoneApproved(m *models.Milestone) {
	go n.deliver(m.ProjectID, false,
		"Milestone approved",
		fmt.Sprintf("Milestone %q was approved by the client.", m.Title))
}

// MilestoneRejected tells the agency a revision was requested.
func (n *Notifier) MilestoneRejected(m *models.Milestone, revisionNotes string, billable bool) {
	body := fmt.Sprintf("Milestone %q was rejected by the client.\n\nRevision notes:\n%s\n", m.Title, revisionNotes)
	if billable {
		body += fmt.Sprintf("\nThis revision is billable at %.2f.\n", m.RevisionRate)
	}
	go n.deliver(m.ProjectID, false, "Revision requested", body)
}

// deliver resolves the recipient from the project row: the client email
// when toClient is set, the owning agency's account email otherwise.
func (n *Notifier) deliver(projectID string, toClient bool, subject string, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := n.projects.GetByID(ctx, projectID)
	if err != nil {
		log.Printf("notifier: failed to resolve project %s: %v", projectID, err)
		return
	}

	to := p.ClientEmail
	if !toClient {
		agency, err := n.users.GetByID(ctx, p.AgencyID)
		if err != nil {
			log.Printf("notifier: failed to resolve agency %s: %v", p.AgencyID, err)
			return
		}
		to = agency.Email
	}

	if err := n.mailer.Send(to, subject, body); err != nil {
		log.Printf("notifier: failed to send %q to %s: %v", subject, to, err)
	}
}
