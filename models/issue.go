package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Road        IssueCategory = "Road"
	Water       IssueCategory = "Water"
	Sanitation  IssueCategory = "Sanitation"
	Electricity IssueCategory = "Electricity"
	Other       IssueCategory = "Other"
)

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c string) bool {
	switch IssueCategory(c) {
	case Road, Water, Sanitation, Electricity, Other:
		return true
	}
	return false
}

// IssueStatus enum. Stored lowercase; display casing is a client concern.
type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusInProgress IssueStatus = "in-progress"
	StatusWorking    IssueStatus = "working"
	StatusResolved   IssueStatus = "resolved"
	StatusClosed     IssueStatus = "closed"
	StatusRejected   IssueStatus = "rejected"
)

// NormalizeStatus folds display variants ("Pending", "In Progress") to the
// canonical lowercase form. Returns false for unknown values.
func NormalizeStatus(s string) (IssueStatus, bool) {
	folded := strings.ToLower(strings.TrimSpace(s))
	folded = strings.ReplaceAll(folded, " ", "-")
	switch IssueStatus(folded) {
	case StatusPending, StatusInProgress, StatusWorking, StatusResolved, StatusClosed, StatusRejected:
		return IssueStatus(folded), true
	}
	return "", false
}

// IsTerminal reports whether no transition leaves s.
func (s IssueStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusRejected
}

// IssuePriority enum
type IssuePriority string

const (
	PriorityNormal IssuePriority = "normal"
	PriorityHigh   IssuePriority = "high"
)

// Role of an authenticated actor.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	switch Role(r) {
	case RoleCitizen, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// statusTransitions is the single authoritative transition table. Every
// status change anywhere in the service goes through CanTransition; handlers
// never carry their own copy of these edges.
var statusTransitions = map[IssueStatus][]IssueStatus{
	StatusPending:    {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusWorking, StatusResolved},
	StatusWorking:    {StatusResolved},
	StatusResolved:   {StatusClosed},
	StatusRejected:   {},
	StatusClosed:     {},
}

// CanTransition reports whether to is a direct successor of from.
func CanTransition(from, to IssueStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successors of from, in table order.
func NextStatuses(from IssueStatus) []IssueStatus {
	next := statusTransitions[from]
	out := make([]IssueStatus, len(next))
	copy(out, next)
	return out
}

// StatusEvent is one entry of an issue's append-only timeline.
type StatusEvent struct {
	Status        IssueStatus `bson:"status" json:"status"`
	Message       string      `bson:"message,omitempty" json:"message,omitempty"`
	UpdatedBy     string      `bson:"updatedBy" json:"updatedBy"`
	UpdatedByRole Role        `bson:"updatedByRole" json:"updatedByRole"`
	Date          time.Time   `bson:"date" json:"date"`
}

// Issue represents a civic issue reported by a citizen. Status always equals
// the status of the last timeline entry; the timeline is never mutated or
// truncated while the issue exists.
type Issue struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description" json:"description"`
	Category      IssueCategory      `bson:"category" json:"category"`
	Location      string             `bson:"location" json:"location"`
	ImageURL      *string            `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Status        IssueStatus        `bson:"status" json:"status"`
	Priority      IssuePriority      `bson:"priority" json:"priority"`
	Reporter      string             `bson:"reporter" json:"reporter"`
	ReporterID    primitive.ObjectID `bson:"reporterId" json:"reporterId"`
	AssignedStaff string             `bson:"assignedStaff,omitempty" json:"assignedStaff,omitempty"`
	Upvotes       []string           `bson:"upvotes" json:"upvotes"`
	Timeline      []StatusEvent      `bson:"timeline" json:"timeline"`
	Longitude     *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Latitude      *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
	ResolvedAt    *time.Time         `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// CurrentStatus returns the status of the last timeline entry, or the cached
// Status field for an issue that somehow has no events.
func (i *Issue) CurrentStatus() IssueStatus {
	if len(i.Timeline) == 0 {
		return i.Status
	}
	return i.Timeline[len(i.Timeline)-1].Status
}

// HasUpvote reports whether email already upvoted this issue.
func (i *Issue) HasUpvote(email string) bool {
	for _, v := range i.Upvotes {
		if v == email {
			return true
		}
	}
	return false
}

// NewIssue builds a pending issue with its first timeline event. The event
// and the status field are written together so the timeline invariant holds
// from creation. reporterRole is the reporter's role at creation time; staff
// and admins report issues too.
func NewIssue(title, description string, category IssueCategory, location, reporter string, reporterID primitive.ObjectID, reporterRole Role) Issue {
	now := time.Now()
	return Issue{
		ID:          primitive.NewObjectID(),
		Title:       title,
		Description: description,
		Category:    category,
		Location:    location,
		Status:      StatusPending,
		Priority:    PriorityNormal,
		Reporter:    reporter,
		ReporterID:  reporterID,
		Upvotes:     []string{},
		Timeline: []StatusEvent{{
			Status:        StatusPending,
			UpdatedBy:     reporter,
			UpdatedByRole: reporterRole,
			Date:          now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
