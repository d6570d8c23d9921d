package lifecycle

import (
	"context"
	"sync"
	"testing"

	"civicfix-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	adminActor  = Actor{ID: "a1", Email: "admin@city.gov", Role: models.RoleAdmin}
	admin2Actor = Actor{ID: "a2", Email: "admin2@city.gov", Role: models.RoleAdmin}
	staffActor  = Actor{ID: "s1", Email: "staff@city.gov", Role: models.RoleStaff}
	staff2Actor = Actor{ID: "s2", Email: "staff2@city.gov", Role: models.RoleStaff}
	reporter    = Actor{ID: "c1", Email: "reporter@example.com", Role: models.RoleCitizen}
	neighbor    = Actor{ID: "c2", Email: "neighbor@example.com", Role: models.RoleCitizen}
)

type fixture struct {
	manager  *Manager
	store    *MemStore
	payments *MemPayments
}

func newFixture() *fixture {
	store := NewMemStore()
	payments := NewMemPayments()
	staff := NewMemDirectory(staffActor.Email, staff2Actor.Email)
	return &fixture{
		manager:  NewManager(store, payments, staff),
		store:    store,
		payments: payments,
	}
}

// seedIssue creates a pending issue reported by the reporter actor and
// returns its id.
func (f *fixture) seedIssue(t *testing.T) string {
	t.Helper()
	issue := models.NewIssue("Broken streetlight", "Dark at night", models.Road, "5th Ave", reporter.Email, primitive.NewObjectID(), models.RoleCitizen)
	if err := f.manager.CreateIssue(context.Background(), &issue); err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	return issue.ID.Hex()
}

func checkKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := ErrKind(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}

// checkInvariant verifies status always equals the last timeline entry.
func checkInvariant(t *testing.T, issue *models.Issue) {
	t.Helper()
	if len(issue.Timeline) == 0 {
		t.Fatalf("timeline is empty")
	}
	if issue.Status != issue.Timeline[len(issue.Timeline)-1].Status {
		t.Fatalf("status %s does not match last timeline event %s", issue.Status, issue.Timeline[len(issue.Timeline)-1].Status)
	}
}

func TestCreateIssueStartsPendingWithTimeline(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)

	issue, err := f.manager.GetIssue(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if issue.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", issue.Status)
	}
	if len(issue.Timeline) != 1 || issue.Timeline[0].Status != models.StatusPending {
		t.Fatalf("expected single pending timeline event, got %+v", issue.Timeline)
	}
	if issue.AssignedStaff != "" {
		t.Fatalf("expected empty assignedStaff, got %q", issue.AssignedStaff)
	}
	checkInvariant(t, issue)
}

func TestAssignStaffByNonAdminForbidden(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)

	for _, actor := range []Actor{staffActor, reporter} {
		_, err := f.manager.AssignStaff(context.Background(), id, staffActor.Email, actor)
		checkKind(t, err, KindForbidden)
	}

	issue, _ := f.manager.GetIssue(context.Background(), id)
	if issue.Status != models.StatusPending || len(issue.Timeline) != 1 {
		t.Fatalf("failed assignment must leave the issue untouched, got %s with %d events", issue.Status, len(issue.Timeline))
	}
}

func TestAssignStaff(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)

	issue, err := f.manager.AssignStaff(context.Background(), id, staffActor.Email, adminActor)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if issue.Status != models.StatusInProgress {
		t.Fatalf("expected in-progress, got %s", issue.Status)
	}
	if issue.AssignedStaff != staffActor.Email {
		t.Fatalf("expected assignedStaff %s, got %s", staffActor.Email, issue.AssignedStaff)
	}
	if len(issue.Timeline) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(issue.Timeline))
	}
	if issue.Timeline[1].UpdatedByRole != models.RoleAdmin {
		t.Fatalf("assignment event should carry admin role, got %s", issue.Timeline[1].UpdatedByRole)
	}
	checkInvariant(t, issue)

	_, err = f.manager.AssignStaff(context.Background(), id, staff2Actor.Email, adminActor)
	checkKind(t, err, KindAlreadyAssigned)
}

func TestAssignUnknownStaffNotFound(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)

	_, err := f.manager.AssignStaff(context.Background(), id, "ghost@city.gov", adminActor)
	checkKind(t, err, KindNotFound)
}

func TestAssignMissingIssueNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.manager.AssignStaff(context.Background(), primitive.NewObjectID().Hex(), staffActor.Email, adminActor)
	checkKind(t, err, KindNotFound)
}

func TestConcurrentAssignExactlyOneWins(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	actors := []Actor{adminActor, admin2Actor}
	staff := []string{staffActor.Email, staff2Actor.Email}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.manager.AssignStaff(context.Background(), id, staff[i], actors[i])
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			checkKind(t, err, KindAlreadyAssigned)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	issue, _ := f.manager.GetIssue(context.Background(), id)
	if len(issue.Timeline) != 2 {
		t.Fatalf("expected exactly one assignment event, timeline has %d entries", len(issue.Timeline))
	}
	checkInvariant(t, issue)
}

func TestUpdateStatusDirectAssignEdgeRejected(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)

	_, err := f.manager.UpdateStatus(context.Background(), id, models.StatusInProgress, "", adminActor)
	checkKind(t, err, KindInvalidTransition)
}

func TestUpdateStatusWrongStaffForbidden(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	if _, err := f.manager.AssignStaff(context.Background(), id, staffActor.Email, adminActor); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err := f.manager.UpdateStatus(context.Background(), id, models.StatusResolved, "", staff2Actor)
	checkKind(t, err, KindForbidden)

	// A citizen cannot take staff edges either.
	_, err = f.manager.UpdateStatus(context.Background(), id, models.StatusWorking, "", reporter)
	checkKind(t, err, KindForbidden)
}

func TestUpdateStatusNoBackwardTransitions(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()
	if _, err := f.manager.AssignStaff(ctx, id, staffActor.Email, adminActor); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.manager.UpdateStatus(ctx, id, models.StatusResolved, "fixed", staffActor); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	for _, target := range []models.IssueStatus{models.StatusPending, models.StatusInProgress, models.StatusWorking} {
		_, err := f.manager.UpdateStatus(ctx, id, target, "", staffActor)
		checkKind(t, err, KindInvalidTransition)
	}
}

func TestUpdateStatusSetsResolvedAt(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()
	if _, err := f.manager.AssignStaff(ctx, id, staffActor.Email, adminActor); err != nil {
		t.Fatalf("assign: %v", err)
	}

	issue, err := f.manager.UpdateStatus(ctx, id, models.StatusResolved, "done", staffActor)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if issue.ResolvedAt == nil {
		t.Fatalf("resolvedAt should be set when the issue resolves")
	}
}

func TestAdminCanCloseResolvedIssue(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()
	if _, err := f.manager.AssignStaff(ctx, id, staffActor.Email, adminActor); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.manager.UpdateStatus(ctx, id, models.StatusResolved, "", staffActor); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	issue, err := f.manager.UpdateStatus(ctx, id, models.StatusClosed, "verified", adminActor)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if issue.Status != models.StatusClosed {
		t.Fatalf("expected closed, got %s", issue.Status)
	}
	checkInvariant(t, issue)
}

func TestRejectIssue(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()

	_, err := f.manager.RejectIssue(ctx, id, "duplicate", staffActor)
	checkKind(t, err, KindForbidden)

	issue, err := f.manager.RejectIssue(ctx, id, "", adminActor)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if issue.Status != models.StatusRejected {
		t.Fatalf("expected rejected, got %s", issue.Status)
	}
	if got := issue.Timeline[len(issue.Timeline)-1].Message; got != "No reason provided" {
		t.Fatalf("expected default reason, got %q", got)
	}
	checkInvariant(t, issue)

	// Rejection is terminal.
	_, err = f.manager.RejectIssue(ctx, id, "again", adminActor)
	checkKind(t, err, KindInvalidTransition)
}

func TestRejectNonPendingInvalid(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()
	if _, err := f.manager.AssignStaff(ctx, id, staffActor.Email, adminActor); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err := f.manager.RejectIssue(ctx, id, "too late", adminActor)
	checkKind(t, err, KindInvalidTransition)
}

func TestBoostIssue(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()

	// Not the reporter.
	_, err := f.manager.BoostIssue(ctx, id, neighbor)
	checkKind(t, err, KindForbidden)

	// Owner but unpaid.
	_, err = f.manager.BoostIssue(ctx, id, reporter)
	checkKind(t, err, KindPaymentNotVerified)

	f.payments.RecordBoost(id, reporter.Email)
	issue, err := f.manager.BoostIssue(ctx, id, reporter)
	if err != nil {
		t.Fatalf("boost: %v", err)
	}
	if issue.Priority != models.PriorityHigh {
		t.Fatalf("expected high priority, got %s", issue.Priority)
	}
	if len(issue.Timeline) != 1 {
		t.Fatalf("boost must not append a timeline event, got %d entries", len(issue.Timeline))
	}

	// Already boosted.
	_, err = f.manager.BoostIssue(ctx, id, reporter)
	checkKind(t, err, KindInvalidTransition)
}

func TestBoostNonPendingInvalidRegardlessOfPayment(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()
	f.payments.RecordBoost(id, reporter.Email)
	if _, err := f.manager.AssignStaff(ctx, id, staffActor.Email, adminActor); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err := f.manager.BoostIssue(ctx, id, reporter)
	checkKind(t, err, KindInvalidTransition)
}

func TestSelfUpvoteForbidden(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)

	_, err := f.manager.Upvote(context.Background(), id, reporter)
	checkKind(t, err, KindForbidden)
}

func TestDuplicateUpvoteFails(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()

	issue, err := f.manager.Upvote(ctx, id, neighbor)
	if err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if len(issue.Upvotes) != 1 || issue.Upvotes[0] != neighbor.Email {
		t.Fatalf("expected one upvote by %s, got %v", neighbor.Email, issue.Upvotes)
	}

	_, err = f.manager.Upvote(ctx, id, neighbor)
	checkKind(t, err, KindDuplicateAction)
}

func TestDeleteIssueAuthorization(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// A stranger cannot delete someone else's issue.
	id := f.seedIssue(t)
	checkKind(t, f.manager.DeleteIssue(ctx, id, neighbor), KindForbidden)

	// The reporter can delete while pending.
	if err := f.manager.DeleteIssue(ctx, id, reporter); err != nil {
		t.Fatalf("reporter delete: %v", err)
	}
	checkKind(t, f.manager.DeleteIssue(ctx, id, reporter), KindNotFound)

	// Once assigned, the reporter can no longer delete; an admin still can.
	id = f.seedIssue(t)
	if _, err := f.manager.AssignStaff(ctx, id, staffActor.Email, adminActor); err != nil {
		t.Fatalf("assign: %v", err)
	}
	checkKind(t, f.manager.DeleteIssue(ctx, id, reporter), KindForbidden)
	if err := f.manager.DeleteIssue(ctx, id, adminActor); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

// assignBeforeDelete commits an assignment between the manager's
// precondition read and the store delete, forcing the worst-case
// interleaving for a reporter-initiated delete.
type assignBeforeDelete struct {
	*MemStore
	assign func()
	once   sync.Once
}

func (s *assignBeforeDelete) DeleteIssue(ctx context.Context, id string, pre *DeletePrecondition) error {
	s.once.Do(s.assign)
	return s.MemStore.DeleteIssue(ctx, id, pre)
}

func TestReporterDeleteLosesToConcurrentAssignment(t *testing.T) {
	ctx := context.Background()
	inner := NewMemStore()
	issue := models.NewIssue("Broken streetlight", "Dark at night", models.Road, "5th Ave", reporter.Email, primitive.NewObjectID(), models.RoleCitizen)
	if err := inner.CreateIssue(ctx, &issue); err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	id := issue.ID.Hex()

	wrapped := &assignBeforeDelete{MemStore: inner}
	wrapped.assign = func() {
		tr := Transition{
			From:        models.StatusPending,
			AssignStaff: staffActor.Email,
			Event: models.StatusEvent{
				Status:        models.StatusInProgress,
				UpdatedBy:     adminActor.Email,
				UpdatedByRole: models.RoleAdmin,
				Date:          issue.CreatedAt,
			},
		}
		if _, err := inner.ApplyTransition(ctx, id, tr); err != nil {
			t.Errorf("racing assignment: %v", err)
		}
	}
	manager := NewManager(wrapped, NewMemPayments(), NewMemDirectory(staffActor.Email))

	// The reporter's precondition held at read time but the assignment
	// commits first; the delete must lose.
	checkKind(t, manager.DeleteIssue(ctx, id, reporter), KindForbidden)

	survived, err := inner.GetIssue(ctx, id)
	if err != nil {
		t.Fatalf("assigned issue must survive the losing delete: %v", err)
	}
	if survived.Status != models.StatusInProgress || survived.AssignedStaff != staffActor.Email {
		t.Fatalf("winner's assignment was lost: %+v", survived)
	}
	if len(survived.Timeline) != 2 {
		t.Fatalf("expected the assignment event to survive, timeline has %d entries", len(survived.Timeline))
	}
}

func TestFullLifecycleWalk(t *testing.T) {
	f := newFixture()
	id := f.seedIssue(t)
	ctx := context.Background()

	issue, err := f.manager.AssignStaff(ctx, id, staffActor.Email, adminActor)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if issue.Status != models.StatusInProgress || len(issue.Timeline) != 2 {
		t.Fatalf("after assign: %s, %d events", issue.Status, len(issue.Timeline))
	}

	issue, err = f.manager.UpdateStatus(ctx, id, models.StatusWorking, "crew on site", staffActor)
	if err != nil {
		t.Fatalf("working: %v", err)
	}
	if issue.Status != models.StatusWorking || len(issue.Timeline) != 3 {
		t.Fatalf("after working: %s, %d events", issue.Status, len(issue.Timeline))
	}

	issue, err = f.manager.UpdateStatus(ctx, id, models.StatusResolved, "repaired", staffActor)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if issue.Status != models.StatusResolved || len(issue.Timeline) != 4 {
		t.Fatalf("after resolve: %s, %d events", issue.Status, len(issue.Timeline))
	}

	issue, err = f.manager.UpdateStatus(ctx, id, models.StatusClosed, "", staffActor)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if issue.Status != models.StatusClosed || len(issue.Timeline) != 5 {
		t.Fatalf("after close: %s, %d events", issue.Status, len(issue.Timeline))
	}
	checkInvariant(t, issue)

	for _, target := range []models.IssueStatus{
		models.StatusPending, models.StatusInProgress, models.StatusWorking,
		models.StatusResolved, models.StatusRejected,
	} {
		_, err := f.manager.UpdateStatus(ctx, id, target, "", adminActor)
		checkKind(t, err, KindInvalidTransition)
	}
}
