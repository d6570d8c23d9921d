package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"civicfix-be/config"
	"civicfix-be/models"

	"github.com/gin-gonic/gin"
	"github.com/montanaflynn/stats"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetIssueAnalytics returns analytical data about issues
func GetIssueAnalytics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issueCollection := config.GetCollection("issues")

	// Get issues by category using aggregation
	categoryPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$category",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	categoryCursor, err := issueCollection.Aggregate(ctx, categoryPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to get category analytics"})
		return
	}
	defer categoryCursor.Close(ctx)

	var issuesByCategory []bson.M
	if err := categoryCursor.All(ctx, &issuesByCategory); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to decode category analytics"})
		return
	}

	// Status breakdown
	statusPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$status",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	statusCursor, err := issueCollection.Aggregate(ctx, statusPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to get status analytics"})
		return
	}
	defer statusCursor.Close(ctx)

	var issuesByStatus []bson.M
	if err := statusCursor.All(ctx, &issuesByStatus); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to decode status analytics"})
		return
	}

	// Get last 7 days data
	var last7Days []gin.H
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

		nextDate := date.AddDate(0, 0, 1)

		count, err := issueCollection.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{
				"$gte": date,
				"$lt":  nextDate,
			},
		})
		if err != nil {
			count = 0
		}

		last7Days = append(last7Days, gin.H{
			"date":  date.Format("2006-01-02"),
			"count": count,
		})
	}

	// Top upvoted among the most recent 50 issues
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(50)

	cursor, err := issueCollection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to retrieve issues for vote analysis"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to decode issues"})
		return
	}

	type issueWithVoteCount struct {
		ID       primitive.ObjectID `json:"id"`
		Title    string             `json:"title"`
		Category string             `json:"category"`
		Votes    int                `json:"votes"`
	}

	var topVoted []issueWithVoteCount
	for _, issue := range issues {
		topVoted = append(topVoted, issueWithVoteCount{
			ID:       issue.ID,
			Title:    issue.Title,
			Category: string(issue.Category),
			Votes:    len(issue.Upvotes),
		})
	}

	sort.Slice(topVoted, func(i, j int) bool {
		return topVoted[i].Votes > topVoted[j].Votes
	})

	if len(topVoted) > 5 {
		topVoted = topVoted[:5]
	}

	// Resolution time stats over resolved/closed issues
	resolutionStats, err := resolutionTimeStats(ctx, issueCollection)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to compute resolution stats"})
		return
	}

	// Get total counts
	totalIssues, err := issueCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalIssues = 0
	}

	openIssues, err := issueCollection.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []models.IssueStatus{
			models.StatusPending, models.StatusInProgress, models.StatusWorking,
		}},
	})
	if err != nil {
		openIssues = 0
	}

	boostedIssues, err := issueCollection.CountDocuments(ctx, bson.M{"priority": models.PriorityHigh})
	if err != nil {
		boostedIssues = 0
	}

	respondOK(c, http.StatusOK, gin.H{
		"issuesByCategory": issuesByCategory,
		"issuesByStatus":   issuesByStatus,
		"last7Days":        last7Days,
		"topVotedIssues":   topVoted,
		"resolution":       resolutionStats,
		"totalIssues":      totalIssues,
		"openIssues":       openIssues,
		"boostedIssues":    boostedIssues,
	})
}

// resolutionTimeStats computes mean and median hours from creation to
// resolution over the most recent resolved issues.
func resolutionTimeStats(ctx context.Context, issueCollection *mongo.Collection) (gin.H, error) {
	filter := bson.M{"resolvedAt": bson.M{"$exists": true, "$ne": nil}}
	projection := bson.M{"createdAt": 1, "resolvedAt": 1}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "resolvedAt", Value: -1}}).
		SetLimit(500).
		SetProjection(projection)

	cursor, err := issueCollection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	type resolvedIssue struct {
		CreatedAt  time.Time  `bson:"createdAt"`
		ResolvedAt *time.Time `bson:"resolvedAt"`
	}

	var resolved []resolvedIssue
	if err := cursor.All(ctx, &resolved); err != nil {
		return nil, err
	}

	var hours []float64
	for _, r := range resolved {
		if r.ResolvedAt != nil {
			hours = append(hours, r.ResolvedAt.Sub(r.CreatedAt).Hours())
		}
	}

	if len(hours) == 0 {
		return gin.H{"resolvedCount": 0, "meanHours": 0, "medianHours": 0}, nil
	}

	mean, err := stats.Mean(hours)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(hours)
	if err != nil {
		return nil, err
	}

	return gin.H{
		"resolvedCount": len(hours),
		"meanHours":     mean,
		"medianHours":   median,
	}, nil
}
