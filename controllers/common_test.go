package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"civicfix-be/lifecycle"

	"github.com/gin-gonic/gin"
)

func TestStatusForKind(t *testing.T) {
	cases := map[lifecycle.Kind]int{
		lifecycle.KindNotFound:           http.StatusNotFound,
		lifecycle.KindForbidden:          http.StatusForbidden,
		lifecycle.KindInvalidTransition:  http.StatusConflict,
		lifecycle.KindAlreadyAssigned:    http.StatusConflict,
		lifecycle.KindDuplicateAction:    http.StatusConflict,
		lifecycle.KindPaymentNotVerified: http.StatusPaymentRequired,
		lifecycle.KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusForKind(kind); got != want {
			t.Errorf("statusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestRespondErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, &lifecycle.Error{Kind: lifecycle.KindForbidden, Message: "only admins can assign staff"})

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success {
		t.Fatal("failure envelope must have success=false")
	}
	if body.Message != "only admins can assign staff" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestRespondErrorMasksInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("mongo: connection reset"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != "Something went wrong" {
		t.Fatalf("internal details leaked: %q", body.Message)
	}
}

func TestActorFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("user_id", "u1")
	c.Set("email", "user@example.com")
	c.Set("role", "staff")

	actor, ok := actorFromContext(c)
	if !ok {
		t.Fatal("expected actor from populated context")
	}
	if actor.ID != "u1" || actor.Email != "user@example.com" || !actor.IsStaff() {
		t.Fatalf("unexpected actor %+v", actor)
	}

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	if _, ok := actorFromContext(c2); ok {
		t.Fatal("expected failure for unauthenticated context")
	}
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w2.Code)
	}
}

func TestBindOptionalJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newCtx := func(body string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		return c
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := bindOptionalJSON(newCtx(""), &input); err != nil {
		t.Fatalf("empty body should bind to zero value, got %v", err)
	}
	if input.Reason != "" {
		t.Fatalf("expected empty reason, got %q", input.Reason)
	}

	if err := bindOptionalJSON(newCtx(`{"reason": "duplicate report"}`), &input); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if input.Reason != "duplicate report" {
		t.Fatalf("expected bound reason, got %q", input.Reason)
	}

	if err := bindOptionalJSON(newCtx(`{"reason":`), &input); err == nil {
		t.Fatal("malformed JSON should still fail")
	}
}
