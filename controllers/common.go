package controllers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"sync"

	"civicfix-be/config"
	"civicfix-be/lifecycle"
	"civicfix-be/models"
	"civicfix-be/store"

	"github.com/gin-gonic/gin"
)

var (
	managerOnce  sync.Once
	issueManager *lifecycle.Manager
)

// getManager lazily wires the lifecycle manager to mongo so importing this
// package does not force a database connection (the collections connect on
// first request, same as calling config.GetCollection in a handler).
func getManager() *lifecycle.Manager {
	managerOnce.Do(func() {
		m := store.NewMongo(
			config.GetCollection("issues"),
			config.GetCollection("payments"),
			config.GetCollection("users"),
		)
		issueManager = lifecycle.NewManager(m, m, m)
	})
	return issueManager
}

// statusForKind maps a lifecycle error kind to its HTTP status.
func statusForKind(kind lifecycle.Kind) int {
	switch kind {
	case lifecycle.KindNotFound:
		return http.StatusNotFound
	case lifecycle.KindForbidden:
		return http.StatusForbidden
	case lifecycle.KindInvalidTransition, lifecycle.KindAlreadyAssigned, lifecycle.KindDuplicateAction:
		return http.StatusConflict
	case lifecycle.KindPaymentNotVerified:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondOK writes the success envelope.
func respondOK(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{"success": true, "data": data})
}

// respondError writes the failure envelope with the status code matching the
// error kind. Internal errors are logged and masked.
func respondError(c *gin.Context, err error) {
	kind := lifecycle.ErrKind(err)
	message := "Something went wrong"
	var le *lifecycle.Error
	if errors.As(err, &le) && kind != lifecycle.KindInternal {
		message = le.Message
	}
	if kind == lifecycle.KindInternal {
		log.Println("Internal error:", err)
	}
	c.JSON(statusForKind(kind), gin.H{"success": false, "message": message})
}

// bindOptionalJSON binds a JSON body whose fields are all optional. An
// absent body leaves obj at its zero value instead of failing with EOF.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// respondBadRequest writes a 400 failure envelope.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

// actorFromContext builds the explicit Actor passed into every lifecycle
// operation from the claims the auth middleware verified.
func actorFromContext(c *gin.Context) (lifecycle.Actor, bool) {
	userID, okID := c.Get("user_id")
	email, okEmail := c.Get("email")
	role, okRole := c.Get("role")
	if !okID || !okEmail || !okRole {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "User not authenticated"})
		return lifecycle.Actor{}, false
	}
	return lifecycle.Actor{
		ID:    userID.(string),
		Email: email.(string),
		Role:  models.Role(role.(string)),
	}, true
}
