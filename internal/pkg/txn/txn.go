// Package txn 提供可组合的事务会话。
//
// 调用方如果已经持有 Session，直接在该会话中执行；否则由 Manager 开启新事务。
// 同一个逻辑操作中的所有写入都在同一个事务内完成，提交后才执行 AfterCommit 注册的回调。
package txn

import (
	"context"

	"gorm.io/gorm"
)

// Session 事务会话：底层事务句柄 + 提交后回调
type Session struct {
	tx          *gorm.DB
	afterCommit []func()
}

// DB 返回事务句柄
func (s *Session) DB() *gorm.DB {
	return s.tx
}

// AfterCommit 注册在最外层事务提交成功后执行的回调，回滚时丢弃
func (s *Session) AfterCommit(fn func()) {
	s.afterCommit = append(s.afterCommit, fn)
}

// Manager 事务管理器
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// DB 返回非事务句柄，只用于事务外的读取
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Do 在 sess 中执行 fn；sess 为 nil 时开启新事务，提交后执行回调。
// 已有会话时绝不嵌套开启第二个事务，回调交给外层会话在其提交后执行。
func (m *Manager) Do(ctx context.Context, sess *Session, fn func(sess *Session) error) error {
	if sess != nil {
		return fn(sess)
	}

	s := &Session{}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s.tx = tx
		return fn(s)
	})
	if err != nil {
		return err
	}

	for _, cb := range s.afterCommit {
		cb()
	}
	return nil
}
