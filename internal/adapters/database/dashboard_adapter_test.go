package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardVerificationCounts(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewDashboardAdapter(client)

	since := time.Now().Add(-7 * 24 * time.Hour)
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total,\s+COALESCE\(SUM\(CASE WHEN success THEN 1 ELSE 0 END\), 0\) AS successes\s+FROM verification_log`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"total", "successes"}).AddRow(120, 96))

	total, successes, err := adapter.VerificationCounts(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 120, total)
	assert.Equal(t, 96, successes)
}

func TestDashboardSourceBreakdown(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewDashboardAdapter(client)

	since := time.Now().Add(-7 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{"source", "count", "avg_latency_ms"}).
		AddRow("remote_api", 70, 415.2).
		AddRow("local_cache", 40, 6.1)

	mock.ExpectQuery(`SELECT source,\s+COUNT\(\*\) AS count,\s+COALESCE\(AVG\(duration_ms\), 0\) AS avg_latency_ms`).
		WithArgs(since).
		WillReturnRows(rows)

	stats, err := adapter.SourceBreakdown(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "remote_api", stats[0].Source)
	assert.Equal(t, 70, stats[0].Count)
	assert.InDelta(t, 415.2, stats[0].AvgLatencyMs, 1e-9)
}

func TestDashboardTopFailureReasons(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewDashboardAdapter(client)

	since := time.Now().Add(-7 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{"reason", "count"}).
		AddRow("No formulary data available", 14).
		AddRow("remote formulary lookup failed", 5)

	mock.ExpectQuery(`SELECT failure_reason AS reason,\s+COUNT\(\*\) AS count\s+FROM verification_log`).
		WithArgs(since, 5).
		WillReturnRows(rows)

	reasons, err := adapter.TopFailureReasons(context.Background(), since, 5)
	require.NoError(t, err)
	require.Len(t, reasons, 2)
	assert.Equal(t, "No formulary data available", reasons[0].Reason)
	assert.Equal(t, 14, reasons[0].Count)
}
