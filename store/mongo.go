// Package store backs the lifecycle manager with MongoDB. Transitions,
// boosts and upvotes are filtered single-document updates, so the expected
// status (or absent assignee/voter) rides in the query filter and a racing
// writer simply matches nothing.
package store

import (
	"context"
	"errors"

	"civicfix-be/lifecycle"
	"civicfix-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements lifecycle.Store, lifecycle.PaymentVerifier and
// lifecycle.Directory over the issues, payments and users collections.
type Mongo struct {
	issues   *mongo.Collection
	payments *mongo.Collection
	users    *mongo.Collection
}

// NewMongo wires the three collections.
func NewMongo(issues, payments, users *mongo.Collection) *Mongo {
	return &Mongo{issues: issues, payments: payments, users: users}
}

func (s *Mongo) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, lifecycle.ErrNoIssue
	}
	var issue models.Issue
	if err := s.issues.FindOne(ctx, bson.M{"_id": objID}).Decode(&issue); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, lifecycle.ErrNoIssue
		}
		return nil, err
	}
	return &issue, nil
}

func (s *Mongo) CreateIssue(ctx context.Context, issue *models.Issue) error {
	_, err := s.issues.InsertOne(ctx, issue)
	return err
}

func (s *Mongo) ApplyTransition(ctx context.Context, id string, tr lifecycle.Transition) (*models.Issue, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, lifecycle.ErrNoIssue
	}

	filter := bson.M{"_id": objID, "status": tr.From}
	set := bson.M{"status": tr.Event.Status, "updatedAt": tr.Event.Date}
	if tr.AssignStaff != "" {
		// $in with null also matches documents without the field.
		filter["assignedStaff"] = bson.M{"$in": bson.A{nil, ""}}
		set["assignedStaff"] = tr.AssignStaff
	}
	if tr.MarkResolved {
		set["resolvedAt"] = tr.Event.Date
	}
	update := bson.M{"$set": set, "$push": bson.M{"timeline": tr.Event}}

	return s.findOneAndUpdate(ctx, objID, filter, update)
}

func (s *Mongo) SetPriority(ctx context.Context, id string, from models.IssueStatus, priority models.IssuePriority) (*models.Issue, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, lifecycle.ErrNoIssue
	}
	filter := bson.M{"_id": objID, "status": from, "priority": bson.M{"$ne": priority}}
	update := bson.M{"$set": bson.M{"priority": priority}}
	return s.findOneAndUpdate(ctx, objID, filter, update)
}

func (s *Mongo) AddUpvote(ctx context.Context, id, voter string) (*models.Issue, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, lifecycle.ErrNoIssue
	}
	filter := bson.M{
		"_id":      objID,
		"reporter": bson.M{"$ne": voter},
		"upvotes":  bson.M{"$ne": voter},
	}
	update := bson.M{"$addToSet": bson.M{"upvotes": voter}}
	return s.findOneAndUpdate(ctx, objID, filter, update)
}

// findOneAndUpdate runs the conditional update and separates "issue gone"
// from "precondition failed" for the manager.
func (s *Mongo) findOneAndUpdate(ctx context.Context, objID primitive.ObjectID, filter, update bson.M) (*models.Issue, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue models.Issue
	err := s.issues.FindOneAndUpdate(ctx, filter, update, opts).Decode(&issue)
	if err == nil {
		return &issue, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	count, countErr := s.issues.CountDocuments(ctx, bson.M{"_id": objID})
	if countErr != nil {
		return nil, countErr
	}
	if count == 0 {
		return nil, lifecycle.ErrNoIssue
	}
	return nil, lifecycle.ErrConflict
}

func (s *Mongo) DeleteIssue(ctx context.Context, id string, pre *lifecycle.DeletePrecondition) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return lifecycle.ErrNoIssue
	}
	filter := bson.M{"_id": objID}
	if pre != nil {
		filter["reporter"] = pre.Reporter
		filter["status"] = pre.Status
	}
	res, err := s.issues.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		count, countErr := s.issues.CountDocuments(ctx, bson.M{"_id": objID})
		if countErr != nil {
			return countErr
		}
		if count == 0 {
			return lifecycle.ErrNoIssue
		}
		return lifecycle.ErrConflict
	}
	// Orphaned boost payments are dropped with the issue.
	_, _ = s.payments.DeleteMany(ctx, bson.M{"issue": objID})
	return nil
}

// VerifiedBoost reports whether a succeeded boost payment by payer exists
// for the issue.
func (s *Mongo) VerifiedBoost(ctx context.Context, issueID, payer string) (bool, error) {
	objID, err := primitive.ObjectIDFromHex(issueID)
	if err != nil {
		return false, nil
	}
	count, err := s.payments.CountDocuments(ctx, bson.M{
		"issue":  objID,
		"payer":  payer,
		"type":   models.PaymentBoost,
		"status": models.PaymentSucceeded,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// StaffExists reports whether a user with the staff role has this email.
func (s *Mongo) StaffExists(ctx context.Context, email string) (bool, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{"email": email, "role": models.RoleStaff})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
