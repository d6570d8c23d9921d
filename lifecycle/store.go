package lifecycle

import (
	"context"
	"errors"

	"civicfix-be/models"
)

// ErrConflict is returned by Store implementations when a conditional update
// matched no document even though the issue exists. The manager re-reads the
// issue to turn it into the right typed error for the caller.
var ErrConflict = errors.New("lifecycle: conditional update matched nothing")

// ErrNoIssue is returned by Store implementations when the issue id is
// unknown.
var ErrNoIssue = errors.New("lifecycle: issue not found")

// Transition describes one atomic status change: the status the issue must
// currently hold, the event to append, and the field updates that ride along
// with it.
type Transition struct {
	// From is the status the issue must hold for the update to apply.
	From models.IssueStatus
	// Event is appended to the timeline; Event.Status becomes the new
	// current status.
	Event models.StatusEvent
	// AssignStaff, when non-empty, sets assignedStaff. The store must also
	// require assignedStaff to be unset for the update to match.
	AssignStaff string
	// MarkResolved sets resolvedAt to the event date.
	MarkResolved bool
}

// DeletePrecondition guards reporter-initiated deletes: the delete only
// applies while the issue still belongs to Reporter and holds Status, so a
// transition that commits after the manager's read makes the delete miss
// instead of destroying the winner's timeline entry.
type DeletePrecondition struct {
	Reporter string
	Status   models.IssueStatus
}

// Store is the persistence surface the manager drives. Every method is a
// single atomic operation against one issue document; ApplyTransition,
// AddUpvote and a preconditioned DeleteIssue are compare-and-set updates
// that fail with ErrConflict when the precondition no longer holds, so
// racing writers cannot overwrite each other's timeline entries.
type Store interface {
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	ApplyTransition(ctx context.Context, id string, tr Transition) (*models.Issue, error)
	SetPriority(ctx context.Context, id string, from models.IssueStatus, priority models.IssuePriority) (*models.Issue, error)
	AddUpvote(ctx context.Context, id, voter string) (*models.Issue, error)
	// DeleteIssue removes the issue. A nil pre deletes unconditionally
	// (admin path); otherwise the delete only matches while pre holds.
	DeleteIssue(ctx context.Context, id string, pre *DeletePrecondition) error
}

// PaymentVerifier answers whether a confirmed boost payment exists for an
// issue. Backed by the payments collection in production; stubbed in tests.
type PaymentVerifier interface {
	VerifiedBoost(ctx context.Context, issueID, payer string) (bool, error)
}
