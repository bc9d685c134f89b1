package services

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"odo-backend/internal/models"
	"odo-backend/internal/repository"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// StatsService is the read-only face of the aggregate tables, consumed by
// dashboards. It never writes.
type StatsService struct {
	stats   *repository.StatsRepo
	records *repository.RecordRepo
	groups  *repository.GroupRepo
}

func NewStatsService(stats *repository.StatsRepo, records *repository.RecordRepo, groups *repository.GroupRepo) *StatsService {
	return &StatsService{stats: stats, records: records, groups: groups}
}

func validDate(s string) bool { return dateRe.MatchString(s) }

func (s *StatsService) Summary(ctx context.Context, userID uuid.UUID) (*models.StatsSummary, error) {
	return s.stats.Summary(ctx, userID, time.Now())
}

// Daily returns the user's daily buckets over [start, end], with missing
// days filled in as zero rows so charts get a continuous series.
func (s *StatsService) Daily(ctx context.Context, userID uuid.UUID, start, end string) ([]models.DailyStat, error) {
	if !validDate(start) || !validDate(end) {
		return nil, &ValidationError{Fields: map[string]string{"date": "Dates must be YYYY-MM-DD"}}
	}
	stats, err := s.stats.DailyRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return fillMissingDays(stats, userID, start, end), nil
}

// Hourly returns the user's 24 hour buckets for one date, zero-filled.
func (s *StatsService) Hourly(ctx context.Context, userID uuid.UUID, date string) ([]models.HourlyStat, error) {
	if !validDate(date) {
		return nil, &ValidationError{Fields: map[string]string{"date": "Date must be YYYY-MM-DD"}}
	}
	stats, err := s.stats.HourlyForDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	byHour := make(map[int]models.HourlyStat, len(stats))
	for _, h := range stats {
		byHour[h.Hour] = h
	}
	day, _ := time.Parse("2006-01-02", date)
	filled := make([]models.HourlyStat, 24)
	for hour := 0; hour < 24; hour++ {
		if h, ok := byHour[hour]; ok {
			filled[hour] = h
		} else {
			filled[hour] = models.HourlyStat{UserID: userID, Date: day, Hour: hour}
		}
	}
	return filled, nil
}

func (s *StatsService) GroupDaily(ctx context.Context, groupID uuid.UUID, start, end string) (*models.Group, []models.GroupDailyStat, error) {
	if !validDate(start) || !validDate(end) {
		return nil, nil, &ValidationError{Fields: map[string]string{"date": "Dates must be YYYY-MM-DD"}}
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if group == nil {
		return nil, nil, &NotFoundError{Message: "Group not found"}
	}
	stats, err := s.stats.GroupDailyRange(ctx, groupID, start, end)
	if err != nil {
		return nil, nil, err
	}
	return group, stats, nil
}

func (s *StatsService) History(ctx context.Context, userID uuid.UUID, f repository.HistoryFilter) ([]models.ListeningRecord, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.StartDate != "" && !validDate(f.StartDate) || f.EndDate != "" && !validDate(f.EndDate) {
		return nil, 0, &ValidationError{Fields: map[string]string{"date": "Dates must be YYYY-MM-DD"}}
	}
	return s.records.History(ctx, userID, f)
}

func (s *StatsService) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.ListeningRecord, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.records.Recent(ctx, userID, limit)
}

func fillMissingDays(stats []models.DailyStat, userID uuid.UUID, start, end string) []models.DailyStat {
	startDay, err1 := time.Parse("2006-01-02", start)
	endDay, err2 := time.Parse("2006-01-02", end)
	if err1 != nil || err2 != nil || endDay.Before(startDay) {
		return stats
	}

	byDate := make(map[string]models.DailyStat, len(stats))
	for _, d := range stats {
		byDate[d.Date.Format("2006-01-02")] = d
	}

	var filled []models.DailyStat
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if d, ok := byDate[key]; ok {
			filled = append(filled, d)
		} else {
			filled = append(filled, models.DailyStat{UserID: userID, Date: day})
		}
	}
	return filled
}
