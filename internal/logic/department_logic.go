package logic

import (
	"context"
	"strings"

	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/logger"
	"github.com/blues/agrofund/internal/model"
	"gorm.io/gorm"
)

const (
	DepartmentCrops          = "CROPS"
	DepartmentLivestock      = "LIVESTOCK"
	DepartmentFisheries      = "FISHERIES"
	DepartmentForestry       = "FORESTRY"
	DepartmentInfrastructure = "INFRASTRUCTURE"
	DepartmentGeneral        = "GENERAL"
)

// 项目类别到审核部门的映射, 未列出的类别归 GENERAL
var categoryDepartments = map[string]string{
	"crops":        DepartmentCrops,
	"grains":       DepartmentCrops,
	"vegetables":   DepartmentCrops,
	"fruits":       DepartmentCrops,
	"horticulture": DepartmentCrops,
	"livestock":    DepartmentLivestock,
	"poultry":      DepartmentLivestock,
	"dairy":        DepartmentLivestock,
	"apiculture":   DepartmentLivestock,
	"fisheries":    DepartmentFisheries,
	"aquaculture":  DepartmentFisheries,
	"agroforestry": DepartmentForestry,
	"forestry":     DepartmentForestry,
	"irrigation":   DepartmentInfrastructure,
	"equipment":    DepartmentInfrastructure,
	"storage":      DepartmentInfrastructure,
	"processing":   DepartmentInfrastructure,
}

// Categorize 返回类别对应的部门
func Categorize(category string) string {
	if d, ok := categoryDepartments[strings.ToLower(strings.TrimSpace(category))]; ok {
		return d
	}
	return DepartmentGeneral
}

// CategorizeResult 自动分配部门的结果
type CategorizeResult struct {
	Success    bool   `json:"success"`
	Department string `json:"department"`
	Error      string `json:"error,omitempty"`
}

// ReviewerWorkload 审核员工作量
type ReviewerWorkload struct {
	ReviewerId      int64  `json:"reviewer_id"`
	Name            string `json:"name"`
	CurrentWorkload int    `json:"current_workload"`
	MaxWorkload     int    `json:"max_workload"`
}

// DepartmentWorkload 部门工作量汇总, 只用于展示
type DepartmentWorkload struct {
	Department      string             `json:"department"`
	Reviewers       []ReviewerWorkload `json:"reviewers"`
	CurrentWorkload int                `json:"current_workload"`
	MaxWorkload     int                `json:"max_workload"`
}

// DepartmentLogic 部门路由
type DepartmentLogic struct {
	db *gorm.DB
}

func NewDepartmentLogic(db *gorm.DB) *DepartmentLogic {
	return &DepartmentLogic{db: db}
}

// Categorize 返回类别对应的部门
func (d *DepartmentLogic) Categorize(category string) string {
	return Categorize(category)
}

// AutoCategorize 为项目分配部门, 失败时不返回错误
func (d *DepartmentLogic) AutoCategorize(ctx context.Context, projectId int64, category string) CategorizeResult {
	department := Categorize(category)

	res := d.db.WithContext(ctx).Model(&model.ProjectModel{}).
		Where("id = ?", projectId).
		Update("department", department)
	if res.Error != nil {
		logger.Warn("Failed to assign department for project %d: %v", projectId, res.Error)
		return CategorizeResult{Success: false, Department: DepartmentGeneral, Error: res.Error.Error()}
	}
	if res.RowsAffected == 0 {
		logger.Warn("Failed to assign department for project %d: project not found", projectId)
		return CategorizeResult{Success: false, Department: DepartmentGeneral, Error: "project not found"}
	}

	logger.Info("Project %d assigned to department %s", projectId, department)
	return CategorizeResult{Success: true, Department: department}
}

// ListReviewers 列出部门内可用的审核员
func (d *DepartmentLogic) ListReviewers(ctx context.Context, department string) ([]model.UserModel, error) {
	var reviewers []model.UserModel
	err := d.db.WithContext(ctx).
		Where("role = ? AND department = ? AND is_active = ?", model.RoleGovernment, strings.ToUpper(department), true).
		Order("current_workload ASC, id ASC").
		Find(&reviewers).Error
	if err != nil {
		return nil, errs.Internal(err, "failed to list reviewers")
	}
	return reviewers, nil
}

// Workload 部门工作量
func (d *DepartmentLogic) Workload(ctx context.Context, department string) (*DepartmentWorkload, error) {
	reviewers, err := d.ListReviewers(ctx, department)
	if err != nil {
		return nil, err
	}

	w := &DepartmentWorkload{Department: strings.ToUpper(department), Reviewers: make([]ReviewerWorkload, 0, len(reviewers))}
	for _, r := range reviewers {
		w.Reviewers = append(w.Reviewers, ReviewerWorkload{
			ReviewerId:      r.Id,
			Name:            r.Name,
			CurrentWorkload: r.CurrentWorkload,
			MaxWorkload:     r.MaxWorkload,
		})
		w.CurrentWorkload += r.CurrentWorkload
		w.MaxWorkload += r.MaxWorkload
	}
	return w, nil
}

// AdjustWorkload 调整审核员的工作量计数, 不会低于0
func (d *DepartmentLogic) AdjustWorkload(ctx context.Context, reviewerId int64, delta int) error {
	res := d.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", reviewerId).
		Update("current_workload", gorm.Expr("CASE WHEN current_workload + ? < 0 THEN 0 ELSE current_workload + ? END", delta, delta))
	if res.Error != nil {
		return errs.Internal(res.Error, "failed to adjust workload")
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("reviewer %d not found", reviewerId)
	}
	return nil
}
