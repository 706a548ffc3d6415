package public

import (
	"github.com/refledger/internal/provider"
)

// Handler 对外接口处理器（事件入口与查询面）
type Handler struct {
	*provider.Container
}

// New 创建对外接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
