package lifecycle

import (
	"context"
	"sync"
	"time"

	"civicfix-be/models"
)

// MemStore is an in-memory Store used by tests and local development. Each
// method holds the store lock for its whole check-and-update, which gives the
// same one-winner-per-race guarantee the mongo store gets from filtered
// single-document updates.
type MemStore struct {
	mu     sync.Mutex
	issues map[string]*models.Issue
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{issues: make(map[string]*models.Issue)}
}

func cloneIssue(in *models.Issue) *models.Issue {
	out := *in
	out.Upvotes = append([]string(nil), in.Upvotes...)
	out.Timeline = append([]models.StatusEvent(nil), in.Timeline...)
	return &out
}

// GetIssue returns a copy so callers cannot mutate stored state.
func (s *MemStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNoIssue
	}
	return cloneIssue(issue), nil
}

func (s *MemStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[issue.ID.Hex()] = cloneIssue(issue)
	return nil
}

func (s *MemStore) ApplyTransition(ctx context.Context, id string, tr Transition) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNoIssue
	}
	if issue.Status != tr.From {
		return nil, ErrConflict
	}
	if tr.AssignStaff != "" && issue.AssignedStaff != "" {
		return nil, ErrConflict
	}
	issue.Status = tr.Event.Status
	issue.Timeline = append(issue.Timeline, tr.Event)
	issue.UpdatedAt = tr.Event.Date
	if tr.AssignStaff != "" {
		issue.AssignedStaff = tr.AssignStaff
	}
	if tr.MarkResolved {
		resolvedAt := tr.Event.Date
		issue.ResolvedAt = &resolvedAt
	}
	return cloneIssue(issue), nil
}

func (s *MemStore) SetPriority(ctx context.Context, id string, from models.IssueStatus, priority models.IssuePriority) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNoIssue
	}
	if issue.Status != from || issue.Priority == priority {
		return nil, ErrConflict
	}
	issue.Priority = priority
	issue.UpdatedAt = time.Now()
	return cloneIssue(issue), nil
}

func (s *MemStore) AddUpvote(ctx context.Context, id, voter string) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNoIssue
	}
	if issue.Reporter == voter || issue.HasUpvote(voter) {
		return nil, ErrConflict
	}
	issue.Upvotes = append(issue.Upvotes, voter)
	return cloneIssue(issue), nil
}

func (s *MemStore) DeleteIssue(ctx context.Context, id string, pre *DeletePrecondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return ErrNoIssue
	}
	if pre != nil && (issue.Reporter != pre.Reporter || issue.Status != pre.Status) {
		return ErrConflict
	}
	delete(s.issues, id)
	return nil
}

// MemPayments is an in-memory PaymentVerifier keyed by issue id + payer.
type MemPayments struct {
	mu   sync.Mutex
	paid map[string]bool
}

// NewMemPayments returns an empty MemPayments.
func NewMemPayments() *MemPayments {
	return &MemPayments{paid: make(map[string]bool)}
}

// RecordBoost marks a succeeded boost payment for issueID by payer.
func (p *MemPayments) RecordBoost(issueID, payer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid[issueID+"|"+payer] = true
}

func (p *MemPayments) VerifiedBoost(ctx context.Context, issueID, payer string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paid[issueID+"|"+payer], nil
}

// MemDirectory is an in-memory Directory backed by a set of staff emails.
type MemDirectory struct {
	mu    sync.Mutex
	staff map[string]bool
}

// NewMemDirectory returns a directory containing the given staff emails.
func NewMemDirectory(staff ...string) *MemDirectory {
	d := &MemDirectory{staff: make(map[string]bool)}
	for _, s := range staff {
		d.staff[s] = true
	}
	return d
}

func (d *MemDirectory) StaffExists(ctx context.Context, email string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.staff[email], nil
}
