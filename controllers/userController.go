package controllers

import (
	"context"
	"net/http"
	"time"

	"civicfix-be/config"
	"civicfix-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListStaff returns the staff roster admins pick assignees from.
func ListStaff(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := config.GetCollection("users").Find(ctx, bson.M{"role": models.RoleStaff})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve staff"})
		return
	}
	defer cursor.Close(ctx)

	var staff []models.User
	if err := cursor.All(ctx, &staff); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to decode staff"})
		return
	}

	type staffView struct {
		ID    primitive.ObjectID `json:"id"`
		Name  string             `json:"name"`
		Email string             `json:"email"`
	}
	out := make([]staffView, 0, len(staff))
	for _, u := range staff {
		out = append(out, staffView{ID: u.ID, Name: u.Name, Email: u.Email})
	}

	respondOK(c, http.StatusOK, out)
}

// UpdateUserRole lets an admin grant or revoke staff/admin roles.
func UpdateUserRole(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
		return
	}

	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid user ID")
		return
	}

	var input struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if !models.ValidRole(input.Role) {
		respondBadRequest(c, "Invalid role")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := config.GetCollection("users").UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"role": models.Role(input.Role), "updatedAt": time.Now()}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update role"})
		return
	}
	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	respondOK(c, http.StatusOK, gin.H{"id": userID, "role": input.Role})
}
