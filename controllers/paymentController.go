package controllers

import (
	"context"
	"net/http"
	"time"

	"civicfix-be/config"
	"civicfix-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ConfirmBoostPayment records a succeeded boost payment reported by the
// checkout flow. The (issue, type) unique index makes a second confirmation
// for the same issue a duplicate-key error, not a second record. Checkout
// session creation itself lives with the payment gateway, not here.
func ConfirmBoostPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		IssueID   string `json:"issueId" binding:"required"`
		SessionID string `json:"sessionId" binding:"required"`
		Amount    int64  `json:"amount" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	issueID, err := primitive.ObjectIDFromHex(input.IssueID)
	if err != nil {
		respondBadRequest(c, "Invalid issue ID")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := getManager().GetIssue(ctx, input.IssueID)
	if err != nil {
		respondError(c, err)
		return
	}
	if issue.Reporter != actor.Email {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Only the reporter can pay for a boost"})
		return
	}

	payment := models.Payment{
		ID:        primitive.NewObjectID(),
		Issue:     issueID,
		Payer:     actor.Email,
		Type:      models.PaymentBoost,
		Status:    models.PaymentSucceeded,
		Amount:    input.Amount,
		SessionID: input.SessionID,
		CreatedAt: time.Now(),
	}

	_, err = config.GetCollection("payments").InsertOne(ctx, payment)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "A boost payment already exists for this issue"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to record payment"})
		return
	}

	respondOK(c, http.StatusCreated, payment)
}
