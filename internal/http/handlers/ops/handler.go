package ops

import (
	"github.com/refledger/internal/provider"
)

// Handler 运维接口处理器（账本巡检与人工处置面）
type Handler struct {
	*provider.Container
}

// New 创建运维接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
