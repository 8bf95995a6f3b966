package services

import (
	"context"
	"fmt"
	"time"

	"telecom-project/tasks-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DiffSentinel stands in for "infinite" growth: the previous period had no
// reports and the current one has some.
const DiffSentinel = 999

// StatusStat is the dashboard figure for one report status.
type StatusStat struct {
	Count       int     `json:"count"`
	DiffPercent float64 `json:"diffPercent"`
}

// DashboardSummary is the payload behind the dashboard page header and
// counters block.
type DashboardSummary struct {
	Name    string                `json:"name"`
	Email   string                `json:"email"`
	Role    models.UserRole       `json:"role"`
	Reports map[string]StatusStat `json:"reports"`
}

type DashboardService struct {
	ReportsCollection *mongo.Collection
}

func NewDashboardService(reportsCollection *mongo.Collection) *DashboardService {
	return &DashboardService{ReportsCollection: reportsCollection}
}

// DiffPercent computes the month-over-month change in percent. A previous
// count of zero with a positive current count returns DiffSentinel since
// there is no true infinity to report.
func DiffPercent(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return DiffSentinel
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// matchForRole scopes the aggregation to what the user is allowed to see:
// executors their own reports, initiators their own, everyone else all.
func matchForRole(user *models.User) bson.M {
	switch user.Role {
	case models.RoleExecutor:
		return bson.M{"executorId": user.ProviderUserID}
	case models.RoleInitiator:
		return bson.M{"initiatorId": user.ProviderUserID}
	}
	return bson.M{}
}

// GetSummary aggregates report counts per status for all time and for the
// previous calendar month, scoped by the user's role.
func (s *DashboardService) GetSummary(ctx context.Context, user *models.User) (*DashboardSummary, error) {
	match := matchForRole(user)

	current, err := s.aggregateCounts(ctx, match)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	startOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	startOfLastMonth := startOfThisMonth.AddDate(0, -1, 0)

	lastMonthMatch := bson.M{"createdAt": bson.M{"$gte": startOfLastMonth, "$lt": startOfThisMonth}}
	for k, v := range match {
		lastMonthMatch[k] = v
	}

	previous, err := s.aggregateCounts(ctx, lastMonthMatch)
	if err != nil {
		return nil, err
	}

	statuses := []models.ReportStatus{models.ReportPending, models.ReportIssues, models.ReportFixed, models.ReportAgreed}
	stats := make(map[string]StatusStat, len(statuses))
	for _, status := range statuses {
		stats[string(status)] = StatusStat{
			Count:       current[status],
			DiffPercent: DiffPercent(current[status], previous[status]),
		}
	}

	return &DashboardSummary{
		Name:    user.Name,
		Email:   user.Email,
		Role:    user.Role,
		Reports: stats,
	}, nil
}

func (s *DashboardService) aggregateCounts(ctx context.Context, match bson.M) (map[models.ReportStatus]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := s.ReportsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reports: %v", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.ReportStatus `bson:"_id"`
		Count  int                 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode report aggregation: %v", err)
	}

	counts := make(map[models.ReportStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ListRecentReports returns the newest reports visible to the user, for the
// dashboard "Last Reports" block.
func (s *DashboardService) ListRecentReports(ctx context.Context, user *models.User, limit int64) ([]models.Report, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1}).SetLimit(limit)
	cursor, err := s.ReportsCollection.Find(ctx, matchForRole(user), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve reports: %v", err)
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %v", err)
	}
	return reports, nil
}
