package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"civicfix-be/config"
	"civicfix-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IssueWithVotes decorates an issue with its upvote count and whether the
// requesting user is among the voters.
type IssueWithVotes struct {
	models.Issue
	Votes        int  `json:"votes"`
	UserHasVoted bool `json:"userHasVoted"`
}

func withVotes(issue models.Issue, viewer string) IssueWithVotes {
	return IssueWithVotes{
		Issue:        issue,
		Votes:        len(issue.Upvotes),
		UserHasVoted: viewer != "" && issue.HasUpvote(viewer),
	}
}

// CreateIssue handles the creation of a new issue
func CreateIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		Title       string   `json:"title" binding:"required,max=200"`
		Description string   `json:"description" binding:"required,max=1000"`
		Category    string   `json:"category" binding:"required"`
		Location    string   `json:"location" binding:"required,max=200"`
		ImageURL    *string  `json:"imageUrl,omitempty"`
		Latitude    *float64 `json:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if !models.ValidCategory(input.Category) {
		respondBadRequest(c, "Invalid category")
		return
	}

	reporterID, err := primitive.ObjectIDFromHex(actor.ID)
	if err != nil {
		respondBadRequest(c, "Invalid user ID")
		return
	}

	issue := models.NewIssue(input.Title, input.Description, models.IssueCategory(input.Category), input.Location, actor.Email, reporterID, actor.Role)
	issue.ImageURL = input.ImageURL
	issue.Latitude = input.Latitude
	issue.Longitude = input.Longitude

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := getManager().CreateIssue(ctx, &issue); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, issue)
}

// GetAllIssues handles retrieving all issues with filtering, pagination and
// vote counts. Boosted issues sort first; within a priority band issues
// order by creation time descending (or by votes for sort=top).
func GetAllIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	category := c.Query("category")
	status := c.Query("status")
	search := c.Query("search")
	sortBy := c.DefaultQuery("sort", "newest")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := bson.M{}

	if category != "" && category != "all" {
		filter["category"] = category
	}

	if status != "" && status != "all" {
		normalized, ok := models.NormalizeStatus(status)
		if !ok {
			respondBadRequest(c, "Invalid status filter")
			return
		}
		filter["status"] = normalized
	}

	if search != "" {
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": search, "$options": "i"}},
			{"description": bson.M{"$regex": search, "$options": "i"}},
		}
	}

	skip := (page - 1) * limit

	issueCollection := config.GetCollection("issues")

	totalCount, err := issueCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to count issues"})
		return
	}

	var issues []models.Issue
	if sortBy == "top" {
		issues, err = findTopVoted(ctx, issueCollection, filter, skip, limit)
	} else {
		// "high" sorts before "normal", so ascending priority puts
		// boosted issues first.
		sortOptions := bson.D{{Key: "priority", Value: 1}, {Key: "createdAt", Value: -1}}
		if sortBy == "oldest" {
			sortOptions = bson.D{{Key: "priority", Value: 1}, {Key: "createdAt", Value: 1}}
		}
		findOptions := options.Find().
			SetSort(sortOptions).
			SetSkip(int64(skip)).
			SetLimit(int64(limit))

		var cursor *mongo.Cursor
		cursor, err = issueCollection.Find(ctx, filter, findOptions)
		if err == nil {
			defer cursor.Close(ctx)
			err = cursor.All(ctx, &issues)
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve issues"})
		return
	}

	viewer := ""
	if email, exists := c.Get("email"); exists {
		viewer = email.(string)
	}

	issuesWithVotes := make([]IssueWithVotes, 0, len(issues))
	for _, issue := range issues {
		issuesWithVotes = append(issuesWithVotes, withVotes(issue, viewer))
	}

	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))

	respondOK(c, http.StatusOK, gin.H{
		"issues":      issuesWithVotes,
		"totalIssues": totalCount,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// findTopVoted pages issues ordered by upvote count, boosted first.
func findTopVoted(ctx context.Context, issueCollection *mongo.Collection, filter bson.M, skip, limit int) ([]models.Issue, error) {
	pipeline := []bson.M{
		{"$match": filter},
		{"$addFields": bson.M{"voteCount": bson.M{"$size": "$upvotes"}}},
		{"$sort": bson.D{
			{Key: "priority", Value: 1},
			{Key: "voteCount", Value: -1},
			{Key: "createdAt", Value: -1},
		}},
		{"$skip": skip},
		{"$limit": limit},
	}

	cursor, err := issueCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// GetIssue retrieves an issue by its ID with vote information
func GetIssue(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := getManager().GetIssue(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	viewer := ""
	if email, exists := c.Get("email"); exists {
		viewer = email.(string)
	}

	respondOK(c, http.StatusOK, withVotes(*issue, viewer))
}

// GetMyIssues retrieves all issues reported by the authenticated user
func GetMyIssues(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := config.GetCollection("issues").Find(ctx, bson.M{"reporter": actor.Email}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to decode issues"})
		return
	}

	issuesWithVotes := make([]IssueWithVotes, 0, len(issues))
	for _, issue := range issues {
		issuesWithVotes = append(issuesWithVotes, withVotes(issue, actor.Email))
	}

	respondOK(c, http.StatusOK, issuesWithVotes)
}

// GetAssignedIssues retrieves the issues assigned to the authenticated staff
// member, with the legal next statuses for each so clients don't duplicate
// the transition table.
func GetAssignedIssues(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := config.GetCollection("issues").Find(ctx, bson.M{"assignedStaff": actor.Email}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to decode issues"})
		return
	}

	type assignedIssue struct {
		IssueWithVotes
		NextStatuses []models.IssueStatus `json:"nextStatuses"`
	}

	out := make([]assignedIssue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, assignedIssue{
			IssueWithVotes: withVotes(issue, actor.Email),
			NextStatuses:   models.NextStatuses(issue.Status),
		})
	}

	respondOK(c, http.StatusOK, out)
}

// LatestResolved returns the most recently resolved issues, newest first.
func LatestResolved(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	filter := bson.M{
		"status":     bson.M{"$in": []models.IssueStatus{models.StatusResolved, models.StatusClosed}},
		"resolvedAt": bson.M{"$exists": true, "$ne": nil},
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "resolvedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := config.GetCollection("issues").Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve resolved issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to decode resolved issues"})
		return
	}

	issuesWithVotes := make([]IssueWithVotes, 0, len(issues))
	for _, issue := range issues {
		issuesWithVotes = append(issuesWithVotes, withVotes(issue, ""))
	}

	respondOK(c, http.StatusOK, issuesWithVotes)
}

// DeleteIssue removes an issue and its timeline. Admins can delete any
// issue; reporters only their own pending ones.
func DeleteIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := getManager().DeleteIssue(ctx, c.Param("id"), actor); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

// UpvoteIssue records the actor's upvote. Self-upvotes are forbidden and a
// repeat upvote is a conflict, not a toggle.
func UpvoteIssue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := getManager().Upvote(ctx, c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"votes":        len(issue.Upvotes),
		"userHasVoted": true,
	})
}

// RecentIssues returns the most recent issues that have latitude and longitude
func RecentIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	limit := 19

	filter := bson.M{
		"latitude":  bson.M{"$exists": true, "$ne": nil},
		"longitude": bson.M{"$exists": true, "$ne": nil},
	}

	projection := bson.M{
		"_id":       1,
		"title":     1,
		"latitude":  1,
		"longitude": 1,
		"location":  1,
		"category":  1,
		"status":    1,
		"createdAt": 1,
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(projection)

	cursor, err := config.GetCollection("issues").Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve recent issues"})
		return
	}
	defer cursor.Close(ctx)

	type issueProjection struct {
		ID        primitive.ObjectID `bson:"_id" json:"id"`
		Title     string             `bson:"title" json:"title"`
		Latitude  *float64           `bson:"latitude" json:"latitude"`
		Longitude *float64           `bson:"longitude" json:"longitude"`
		Location  string             `bson:"location" json:"location"`
		Category  string             `bson:"category" json:"category"`
		Status    models.IssueStatus `bson:"status" json:"status"`
		CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	}

	var issues []issueProjection
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to decode recent issues"})
		return
	}

	type issueResponse struct {
		ID        string             `json:"id"`
		Title     string             `json:"title"`
		Latitude  float64            `json:"latitude"`
		Longitude float64            `json:"longitude"`
		Location  string             `json:"location"`
		Category  string             `json:"category,omitempty"`
		Status    models.IssueStatus `json:"status,omitempty"`
		CreatedAt time.Time          `json:"createdAt,omitempty"`
	}

	response := make([]issueResponse, 0, len(issues))
	for _, issue := range issues {
		if issue.Latitude != nil && issue.Longitude != nil {
			response = append(response, issueResponse{
				ID:        issue.ID.Hex(),
				Title:     issue.Title,
				Latitude:  *issue.Latitude,
				Longitude: *issue.Longitude,
				Location:  issue.Location,
				Category:  issue.Category,
				Status:    issue.Status,
				CreatedAt: issue.CreatedAt,
			})
		}
	}

	respondOK(c, http.StatusOK, response)
}
