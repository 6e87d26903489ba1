package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolMonitor_CollectCountsNewWaits(t *testing.T) {
	pm := NewPoolMonitor(nil, 0, 5)

	assert.Equal(t, int64(3), pm.Collect(sql.DBStats{OpenConnections: 4, InUse: 3, Idle: 1, WaitCount: 3}))
	assert.Equal(t, int64(0), pm.Collect(sql.DBStats{WaitCount: 3}))
	assert.Equal(t, int64(10), pm.Collect(sql.DBStats{WaitCount: 13, MaxOpenConnections: 100}))
}
