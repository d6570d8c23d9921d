package controllers

import (
	"context"
	"net/http"
	"time"

	"civicfix-be/models"

	"github.com/gin-gonic/gin"
)

// AssignStaff moves a pending issue to in-progress and records the assignee.
func AssignStaff(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		StaffEmail string `json:"staffEmail" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := getManager().AssignStaff(ctx, c.Param("id"), input.StaffEmail, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, issue)
}

// UpdateStatus advances an issue along the transition table.
func UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		Status  string `json:"status" binding:"required,issuestatus"`
		Message string `json:"message,omitempty" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	newStatus, valid := models.NormalizeStatus(input.Status)
	if !valid {
		respondBadRequest(c, "Invalid status")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := getManager().UpdateStatus(ctx, c.Param("id"), newStatus, input.Message, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, issue)
}

// RejectIssue terminates a pending issue with an admin-supplied reason.
func RejectIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	// The reason is optional and so is the body itself.
	var input struct {
		Reason string `json:"reason,omitempty" binding:"max=500"`
	}
	if err := bindOptionalJSON(c, &input); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := getManager().RejectIssue(ctx, c.Param("id"), input.Reason, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, issue)
}

// BoostIssue raises a pending issue's priority once a boost payment has been
// confirmed for it.
func BoostIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := getManager().BoostIssue(ctx, c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, issue)
}
