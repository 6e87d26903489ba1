package registry

import (
	"fmt"
	"keyshop/internal/domain/loyalty"
	notificationService "keyshop/internal/domain/notification/service"
	"keyshop/internal/pkg/config"
	"keyshop/internal/pkg/storage"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/cache"
	"sort"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文，由 cmd/server 组装
type ModuleContext struct {
	DB     *gorm.DB
	Router *gin.Engine
	Config *config.Config

	TM     *txn.Manager
	Cache  cache.CacheService
	Files  storage.FileStore // 未配置 OSS 时为 nil
	Outbox *notificationService.Outbox
	Tiers  *loyalty.Calculator
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	// 按优先级排序
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}

	// 优先级相同时按名称排序，保证路由注册顺序稳定
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})

	// 按顺序初始化
	for _, module := range modules {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
	}

	return nil
}
