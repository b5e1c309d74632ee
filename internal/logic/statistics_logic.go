package logic

import (
	"context"

	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/logger"
	"github.com/blues/agrofund/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContributorStats 出资人统计
type ContributorStats struct {
	ContributorId      int64           `json:"contributor_id"`
	TotalContributions int64           `json:"total_contributions"`
	Confirmed          int64           `json:"confirmed"`
	Pending            int64           `json:"pending"`
	Failed             int64           `json:"failed"`
	ProjectsSupported  int64           `json:"projects_supported"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
}

// ProjectStats 项目统计, 链可达时目标和总额以链上为准
type ProjectStats struct {
	ProjectId          int64           `json:"project_id"`
	FundingGoal        decimal.Decimal `json:"funding_goal"`
	CurrentFunding     decimal.Decimal `json:"current_funding"`
	ConfirmedAmount    decimal.Decimal `json:"confirmed_amount"`
	ContributorsCount  int64           `json:"contributors_count"`
	ContributionsCount int64           `json:"contributions_count"`
	ChainAvailable     bool            `json:"chain_available"`
}

// PlatformStats 平台统计
type PlatformStats struct {
	TotalProjects      int64            `json:"total_projects"`
	ProjectsByStatus   map[string]int64 `json:"projects_by_status"`
	TotalContributions int64            `json:"total_contributions"`
	Confirmed          int64            `json:"confirmed"`
	Pending            int64            `json:"pending"`
	Failed             int64            `json:"failed"`
	UniqueContributors int64            `json:"unique_contributors"`
	TotalAmount        decimal.Decimal  `json:"total_amount"`
}

// StatisticsLogic 只读统计
type StatisticsLogic struct {
	db       *gorm.DB
	gateway  ChainGateway
	projects *ProjectLogic
}

func NewStatisticsLogic(db *gorm.DB, gateway ChainGateway, projects *ProjectLogic) *StatisticsLogic {
	return &StatisticsLogic{db: db, gateway: gateway, projects: projects}
}

type statusCount struct {
	Status string
	Count  int64
}

type amountSummary struct {
	Total        decimal.Decimal
	Contributors int64
	Projects     int64
}

// ContributorStats 出资人统计
func (s *StatisticsLogic) ContributorStats(ctx context.Context, contributorId int64) (*ContributorStats, error) {
	stats := &ContributorStats{ContributorId: contributorId, TotalAmount: decimal.Zero}
	scope := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&model.ContributionModel{}).Where("contributor_id = ?", contributorId)
	}

	counts, err := countByStatus(scope())
	if err != nil {
		return nil, err
	}
	stats.Confirmed, stats.Pending, stats.Failed = counts[string(model.ContributionStatusConfirmed)], counts[string(model.ContributionStatusPending)], counts[string(model.ContributionStatusFailed)]
	stats.TotalContributions = stats.Confirmed + stats.Pending + stats.Failed

	summary, err := summarizeConfirmed(scope())
	if err != nil {
		return nil, err
	}
	stats.TotalAmount = summary.Total
	stats.ProjectsSupported = summary.Projects
	return stats, nil
}

// ProjectStats 项目统计
func (s *StatisticsLogic) ProjectStats(ctx context.Context, projectId int64) (*ProjectStats, error) {
	project, err := s.projects.Get(ctx, projectId)
	if err != nil {
		return nil, err
	}

	stats := &ProjectStats{
		ProjectId:      project.Id,
		FundingGoal:    project.FundingGoal,
		CurrentFunding: project.CurrentFunding,
	}

	summary, err := summarizeConfirmed(s.db.WithContext(ctx).Model(&model.ContributionModel{}).Where("project_id = ?", projectId))
	if err != nil {
		return nil, err
	}
	stats.ConfirmedAmount = summary.Total
	stats.ContributorsCount = summary.Contributors

	if err := s.db.WithContext(ctx).Model(&model.ContributionModel{}).
		Where("project_id = ?", projectId).
		Count(&stats.ContributionsCount).Error; err != nil {
		return nil, errs.Internal(err, "failed to count contributions of project %d", projectId)
	}

	if project.BlockchainProjectId != nil {
		state, err := s.gateway.ReadProjectState(ctx, *project.BlockchainProjectId)
		if err != nil {
			logger.Warn("Project stats for %d served from local data: %v", projectId, err)
		} else {
			stats.FundingGoal = state.Goal
			stats.CurrentFunding = state.TotalFunding
			stats.ChainAvailable = true
		}
	}
	return stats, nil
}

// PlatformStats 平台统计
func (s *StatisticsLogic) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	stats := &PlatformStats{ProjectsByStatus: map[string]int64{}, TotalAmount: decimal.Zero}

	projectCounts, err := countByStatus(s.db.WithContext(ctx).Model(&model.ProjectModel{}))
	if err != nil {
		return nil, err
	}
	for status, n := range projectCounts {
		stats.ProjectsByStatus[status] = n
		stats.TotalProjects += n
	}

	counts, err := countByStatus(s.db.WithContext(ctx).Model(&model.ContributionModel{}))
	if err != nil {
		return nil, err
	}
	stats.Confirmed, stats.Pending, stats.Failed = counts[string(model.ContributionStatusConfirmed)], counts[string(model.ContributionStatusPending)], counts[string(model.ContributionStatusFailed)]
	stats.TotalContributions = stats.Confirmed + stats.Pending + stats.Failed

	summary, err := summarizeConfirmed(s.db.WithContext(ctx).Model(&model.ContributionModel{}))
	if err != nil {
		return nil, err
	}
	stats.TotalAmount = summary.Total
	stats.UniqueContributors = summary.Contributors
	return stats, nil
}

func countByStatus(query *gorm.DB) (map[string]int64, error) {
	var rows []statusCount
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, errs.Internal(err, "failed to count by status")
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func summarizeConfirmed(query *gorm.DB) (amountSummary, error) {
	var summary amountSummary
	err := query.
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(DISTINCT contributor_id) AS contributors, COUNT(DISTINCT project_id) AS projects").
		Where("status = ?", model.ContributionStatusConfirmed).
		Scan(&summary).Error
	if err != nil {
		return amountSummary{}, errs.Internal(err, "failed to sum contributions")
	}
	return summary, nil
}
