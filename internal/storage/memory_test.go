package storage

import (
	"context"
	"testing"

	"leadgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	storage, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer storage.Close()

	runStorageSuite(t, storage)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	storage, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	ctx := context.Background()

	report := &models.Report{ID: "r1", VacancyText: "original", AnalysisJSON: "{}"}
	require.NoError(t, storage.CreateReport(ctx, report))
	report.VacancyText = "mutated by caller"

	got, err := storage.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.VacancyText)

	got.VacancyText = "mutated again"
	again, err := storage.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.VacancyText)
}

func TestMemoryStorage_LeadsSnapshot(t *testing.T) {
	storage, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.InsertLead(ctx, &models.Lead{Email: "a@x.com", IPAddress: "1.1.1.1"}))
	require.NoError(t, storage.InsertLead(ctx, &models.Lead{Email: "b@x.com"}))

	leads := storage.Leads()
	require.Len(t, leads, 2)
	assert.Equal(t, int64(1), leads[0].ID)
	assert.Equal(t, int64(2), leads[1].ID)

	deleted, err := storage.DeleteByIdentity(ctx, models.Identity{IPAddress: "1.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, storage.Leads(), 1)
	assert.Equal(t, "b@x.com", storage.Leads()[0].Email)
}
