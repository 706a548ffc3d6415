package repository

import "gorm.io/gorm"

// maxPageSize 单页上限，防止榜单/佣金列表一次性拉全表
const maxPageSize = 500

// applyPagination 统一分页：页码从 1 起，非法入参回退为安全值
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
