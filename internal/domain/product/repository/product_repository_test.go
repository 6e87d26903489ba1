package repository

import (
	"context"
	"errors"
	"keyshop/internal/pkg/testutil"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decreaseStockSQL = `UPDATE "products" SET "stock"=stock - $1 WHERE (id = $2 AND stock >= $3)`

func TestProductRepository_DecreaseStock(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"enough stock", 1, true},
		{"guard rejects", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := testutil.NewMockDB(t)
			repo := NewProductRepository(db)

			mock.ExpectExec(regexp.QuoteMeta(decreaseStockSQL)).
				WithArgs(2, "p-1", 2).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.DecreaseStock(context.Background(), "p-1", 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProductRepository_DecreaseStockError(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(decreaseStockSQL)).
		WillReturnError(errors.New("connection reset"))

	ok, err := repo.DecreaseStock(context.Background(), "p-1", 1)
	assert.Error(t, err)
	assert.False(t, ok)
}
