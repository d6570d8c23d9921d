// Package lifecycle owns the issue status state machine: role-gated
// transitions, the append-only timeline, and the boost/upvote rules. All
// enforcement lives here; HTTP handlers only bind input, build an Actor from
// verified claims, and translate the typed errors into response codes.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"civicfix-be/models"
)

// Directory resolves staff identities for assignment.
type Directory interface {
	StaffExists(ctx context.Context, email string) (bool, error)
}

// Manager enforces the issue lifecycle over a Store. Every operation is a
// single atomic unit against the issue record: the status change and its
// timeline entry commit together or not at all, and when two operations race
// on one issue exactly one wins while the loser gets a classifying error.
type Manager struct {
	store    Store
	payments PaymentVerifier
	staff    Directory
}

// NewManager wires a Manager to its collaborators.
func NewManager(store Store, payments PaymentVerifier, staff Directory) *Manager {
	return &Manager{store: store, payments: payments, staff: staff}
}

// CreateIssue persists a freshly built issue. The caller constructs it with
// models.NewIssue so the first pending timeline event is part of the insert.
func (m *Manager) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if err := m.store.CreateIssue(ctx, issue); err != nil {
		return internal("create issue", err)
	}
	return nil
}

// GetIssue fetches one issue.
func (m *Manager) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := m.store.GetIssue(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoIssue) {
			return nil, notFound(id)
		}
		return nil, internal("get issue", err)
	}
	return issue, nil
}

// AssignStaff moves a pending issue to in-progress and records the assignee.
// Admin only; fails if the issue already has staff or has left pending.
func (m *Manager) AssignStaff(ctx context.Context, issueID, staffEmail string, actor Actor) (*models.Issue, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can assign staff")
	}
	ok, err := m.staff.StaffExists(ctx, staffEmail)
	if err != nil {
		return nil, internal("staff lookup", err)
	}
	if !ok {
		return nil, &Error{Kind: KindNotFound, Message: "staff " + staffEmail + " not found"}
	}

	tr := Transition{
		From:        models.StatusPending,
		AssignStaff: staffEmail,
		Event: models.StatusEvent{
			Status:        models.StatusInProgress,
			Message:       "Assigned to " + staffEmail,
			UpdatedBy:     actor.Email,
			UpdatedByRole: actor.Role,
			Date:          time.Now(),
		},
	}
	issue, err := m.store.ApplyTransition(ctx, issueID, tr)
	if err == nil {
		return issue, nil
	}
	if errors.Is(err, ErrNoIssue) {
		return nil, notFound(issueID)
	}
	if errors.Is(err, ErrConflict) {
		return nil, m.classifyAssignConflict(ctx, issueID)
	}
	return nil, internal("assign staff", err)
}

// classifyAssignConflict re-reads the issue to tell the losing admin why the
// compare-and-set missed.
func (m *Manager) classifyAssignConflict(ctx context.Context, issueID string) error {
	issue, err := m.store.GetIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, ErrNoIssue) {
			return notFound(issueID)
		}
		return internal("classify assign conflict", err)
	}
	if issue.AssignedStaff != "" {
		return alreadyAssigned("issue is already assigned to " + issue.AssignedStaff)
	}
	return invalidTransition("issue is no longer pending (now " + string(issue.CurrentStatus()) + ")")
}

// UpdateStatus advances the issue along the transition table. Staff-gated
// edges require the actor to be the assigned staff member; resolved→closed
// also accepts an admin. pending→in-progress is reserved for AssignStaff so
// an in-progress issue always has an assignee.
func (m *Manager) UpdateStatus(ctx context.Context, issueID string, newStatus models.IssueStatus, message string, actor Actor) (*models.Issue, error) {
	issue, err := m.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	from := issue.CurrentStatus()
	if !models.CanTransition(from, newStatus) {
		return nil, invalidTransition(string(newStatus) + " is not a legal successor of " + string(from))
	}
	if err := m.authorizeEdge(issue, from, newStatus, actor); err != nil {
		return nil, err
	}

	tr := Transition{
		From: from,
		Event: models.StatusEvent{
			Status:        newStatus,
			Message:       message,
			UpdatedBy:     actor.Email,
			UpdatedByRole: actor.Role,
			Date:          time.Now(),
		},
		MarkResolved: newStatus == models.StatusResolved,
	}
	updated, err := m.store.ApplyTransition(ctx, issueID, tr)
	if err == nil {
		return updated, nil
	}
	if errors.Is(err, ErrNoIssue) {
		return nil, notFound(issueID)
	}
	if errors.Is(err, ErrConflict) {
		return nil, invalidTransition("issue changed concurrently; status is no longer " + string(from))
	}
	return nil, internal("update status", err)
}

// authorizeEdge applies the actor-role column of the transition table.
func (m *Manager) authorizeEdge(issue *models.Issue, from, to models.IssueStatus, actor Actor) error {
	switch {
	case from == models.StatusPending && to == models.StatusInProgress:
		// Only AssignStaff takes this edge; it records the assignee
		// atomically with the status change.
		return invalidTransition("pending issues enter in-progress through staff assignment")
	case from == models.StatusPending && to == models.StatusRejected:
		if !actor.IsAdmin() {
			return forbidden("only admins can reject issues")
		}
	case to == models.StatusClosed:
		if actor.IsAdmin() {
			return nil
		}
		if !actor.IsStaff() || actor.Email != issue.AssignedStaff {
			return forbidden("only the assigned staff member or an admin can close this issue")
		}
	default:
		if !actor.IsStaff() || actor.Email != issue.AssignedStaff {
			return forbidden("only the assigned staff member can update this issue")
		}
	}
	return nil
}

// RejectIssue terminates a pending issue. Admin only.
func (m *Manager) RejectIssue(ctx context.Context, issueID, reason string, actor Actor) (*models.Issue, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can reject issues")
	}
	if reason == "" {
		reason = "No reason provided"
	}

	tr := Transition{
		From: models.StatusPending,
		Event: models.StatusEvent{
			Status:        models.StatusRejected,
			Message:       reason,
			UpdatedBy:     actor.Email,
			UpdatedByRole: actor.Role,
			Date:          time.Now(),
		},
	}
	issue, err := m.store.ApplyTransition(ctx, issueID, tr)
	if err == nil {
		return issue, nil
	}
	if errors.Is(err, ErrNoIssue) {
		return nil, notFound(issueID)
	}
	if errors.Is(err, ErrConflict) {
		return nil, invalidTransition("only pending issues can be rejected")
	}
	return nil, internal("reject issue", err)
}

// BoostIssue raises a pending issue's priority after verifying the reporter
// paid for the boost. Priority is orthogonal to status: no timeline entry is
// appended.
func (m *Manager) BoostIssue(ctx context.Context, issueID string, actor Actor) (*models.Issue, error) {
	issue, err := m.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Reporter != actor.Email {
		return nil, forbidden("only the reporter can boost their issue")
	}
	if issue.CurrentStatus() != models.StatusPending {
		return nil, invalidTransition("only pending issues can be boosted")
	}
	if issue.Priority == models.PriorityHigh {
		return nil, invalidTransition("issue is already boosted")
	}

	paid, err := m.payments.VerifiedBoost(ctx, issueID, actor.Email)
	if err != nil {
		return nil, internal("payment verification", err)
	}
	if !paid {
		return nil, paymentNotVerified("no confirmed boost payment for this issue")
	}

	updated, err := m.store.SetPriority(ctx, issueID, models.StatusPending, models.PriorityHigh)
	if err == nil {
		return updated, nil
	}
	if errors.Is(err, ErrNoIssue) {
		return nil, notFound(issueID)
	}
	if errors.Is(err, ErrConflict) {
		return nil, invalidTransition("issue changed concurrently; boost no longer applies")
	}
	return nil, internal("boost issue", err)
}

// Upvote records the actor's endorsement. Reporters cannot upvote their own
// issue, and a repeat upvote is a hard error rather than an idempotent no-op.
func (m *Manager) Upvote(ctx context.Context, issueID string, actor Actor) (*models.Issue, error) {
	issue, err := m.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Reporter == actor.Email {
		return nil, forbidden("reporters cannot upvote their own issue")
	}
	if issue.HasUpvote(actor.Email) {
		return nil, duplicateAction("already upvoted")
	}

	updated, err := m.store.AddUpvote(ctx, issueID, actor.Email)
	if err == nil {
		return updated, nil
	}
	if errors.Is(err, ErrNoIssue) {
		return nil, notFound(issueID)
	}
	if errors.Is(err, ErrConflict) {
		return nil, duplicateAction("already upvoted")
	}
	return nil, internal("upvote", err)
}

// DeleteIssue permanently removes the issue and its timeline. Admins can
// delete any issue; reporters only their own, and only while pending. The
// reporter path re-checks its precondition inside the store delete, so a
// transition that commits after the read here wins the race and the delete
// fails instead of destroying the new timeline entry.
func (m *Manager) DeleteIssue(ctx context.Context, issueID string, actor Actor) error {
	issue, err := m.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	var pre *DeletePrecondition
	if !actor.IsAdmin() {
		if issue.Reporter != actor.Email {
			return forbidden("you are not authorized to delete this issue")
		}
		if issue.CurrentStatus() != models.StatusPending {
			return forbidden("reporters can only delete issues that are still pending")
		}
		pre = &DeletePrecondition{Reporter: actor.Email, Status: models.StatusPending}
	}
	if err := m.store.DeleteIssue(ctx, issueID, pre); err != nil {
		if errors.Is(err, ErrNoIssue) {
			return notFound(issueID)
		}
		if errors.Is(err, ErrConflict) {
			return forbidden("the issue is no longer pending; reporters can only delete issues that are still pending")
		}
		return internal("delete issue", err)
	}
	return nil
}
