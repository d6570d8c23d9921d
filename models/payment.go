package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PaymentType enum
type PaymentType string

const (
	PaymentBoost PaymentType = "boost"
)

// PaymentStatus enum
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment records the outcome of a checkout session reported by the payment
// gateway. Boost verification only trusts succeeded records.
type Payment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue     primitive.ObjectID `bson:"issue" json:"issue"`
	Payer     string             `bson:"payer" json:"payer"`
	Type      PaymentType        `bson:"type" json:"type"`
	Status    PaymentStatus      `bson:"status" json:"status"`
	Amount    int64              `bson:"amount" json:"amount"`
	SessionID string             `bson:"sessionId" json:"sessionId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// EnsurePaymentIndex creates a unique compound index for (issue, type) so an
// issue can carry at most one boost payment.
func EnsurePaymentIndex(collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "issue", Value: 1}, {Key: "type", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}
