package repository

import (
	"errors"
	"time"

	"github.com/refledger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RankSnapshotRepository 排行榜快照数据访问接口
type RankSnapshotRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) RankSnapshotRepository

	UpsertBatch(rows []models.RankSnapshot) error
	ListTop(scope string, creatorID uint, metric string, limit int) ([]models.RankSnapshot, error)
	GetMemberRank(scope string, creatorID uint, metric string, memberID uint) (*models.RankSnapshot, error)
	PruneStale(scope string, creatorID uint, metric string, computedBefore time.Time) (int64, error)
}

// GormRankSnapshotRepository GORM 排行榜快照仓储
type GormRankSnapshotRepository struct {
	db *gorm.DB
}

// NewRankSnapshotRepository 创建排行榜快照仓储
func NewRankSnapshotRepository(db *gorm.DB) *GormRankSnapshotRepository {
	return &GormRankSnapshotRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRankSnapshotRepository) WithTx(tx *gorm.DB) RankSnapshotRepository {
	if tx == nil {
		return r
	}
	return &GormRankSnapshotRepository{db: tx}
}

// Transaction 执行事务
func (r *GormRankSnapshotRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// UpsertBatch 批量写入快照行（按唯一键冲突更新指标与名次）
func (r *GormRankSnapshotRepository) UpsertBatch(rows []models.RankSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "scope"},
			{Name: "creator_id"},
			{Name: "metric"},
			{Name: "member_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"metric_value", "rank", "computed_at", "updated_at"}),
	}).CreateInBatches(rows, 200).Error
}

// ListTop 按名次列出快照（并列名次按会员注册时间先后排序）
func (r *GormRankSnapshotRepository) ListTop(scope string, creatorID uint, metric string, limit int) ([]models.RankSnapshot, error) {
	query := r.db.Model(&models.RankSnapshot{}).
		Joins("JOIN members ON members.id = rank_snapshots.member_id").
		Where("rank_snapshots.scope = ? AND rank_snapshots.creator_id = ? AND rank_snapshots.metric = ?", scope, creatorID, metric).
		Order("rank_snapshots.rank asc").
		Order("members.created_at asc").
		Order("rank_snapshots.member_id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.RankSnapshot
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetMemberRank 获取单个会员的快照名次
func (r *GormRankSnapshotRepository) GetMemberRank(scope string, creatorID uint, metric string, memberID uint) (*models.RankSnapshot, error) {
	if memberID == 0 {
		return nil, nil
	}
	var row models.RankSnapshot
	err := r.db.Where("scope = ? AND creator_id = ? AND metric = ? AND member_id = ?",
		scope, creatorID, metric, memberID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// PruneStale 删除本轮未被刷新的残留快照行（会员退出排名后清理）
func (r *GormRankSnapshotRepository) PruneStale(scope string, creatorID uint, metric string, computedBefore time.Time) (int64, error) {
	result := r.db.Where("scope = ? AND creator_id = ? AND metric = ? AND computed_at < ?",
		scope, creatorID, metric, computedBefore).
		Delete(&models.RankSnapshot{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
