package txn

import (
	"context"
	"errors"
	userModel "keyshop/internal/domain/user/model"
	"keyshop/internal/pkg/testutil"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("提交后执行回调", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		m := NewManager(db)
		called := 0

		err := m.Do(ctx, nil, func(sess *Session) error {
			sess.AfterCommit(func() { called++ })
			return sess.DB().Create(&userModel.User{Username: "alice", Balance: decimal.Zero}).Error
		})
		require.NoError(t, err)
		assert.Equal(t, 1, called)

		var count int64
		db.Model(&userModel.User{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("回滚时丢弃回调", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		m := NewManager(db)
		called := false

		err := m.Do(ctx, nil, func(sess *Session) error {
			sess.AfterCommit(func() { called = true })
			if err := sess.DB().Create(&userModel.User{Username: "bob", Balance: decimal.Zero}).Error; err != nil {
				return err
			}
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.False(t, called)

		var count int64
		db.Model(&userModel.User{}).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("已有会话时复用，不嵌套", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		m := NewManager(db)
		var order []string

		err := m.Do(ctx, nil, func(outer *Session) error {
			outer.AfterCommit(func() { order = append(order, "outer") })
			return m.Do(ctx, outer, func(inner *Session) error {
				assert.Same(t, outer, inner)
				inner.AfterCommit(func() { order = append(order, "inner") })
				assert.Empty(t, order)
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"outer", "inner"}, order)
	})
}
