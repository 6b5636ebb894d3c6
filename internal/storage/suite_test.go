package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"leadgate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStorageSuite exercises the Storage contract against any backend. Every
// identifier is unique per run so the suite tolerates a shared database.
func runStorageSuite(t *testing.T, s Storage) {
	ctx := context.Background()
	run := uuid.NewString()[:8]
	email := func(name string) string { return fmt.Sprintf("%s-%s@example.com", name, run) }
	ip := func(n int) string { return fmt.Sprintf("ip-%d-%s", n, run) }
	fp := func(name string) string { return "fp-" + name + "-" + run }
	reportID := func(name string) string { return name + "-" + run }

	t.Run("Report round trip", func(t *testing.T) {
		created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
		report := &models.Report{
			ID:           reportID("r1"),
			VacancyText:  "We are hiring a Go engineer",
			AnalysisJSON: `{"summary":{"total_score":42}}`,
			CreatedAt:    created,
		}
		require.NoError(t, s.CreateReport(ctx, report))

		got, err := s.GetReport(ctx, report.ID)
		require.NoError(t, err)
		assert.Equal(t, report.VacancyText, got.VacancyText)
		assert.Equal(t, report.AnalysisJSON, got.AnalysisJSON)
		assert.True(t, created.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, created)
	})

	t.Run("Report created_at defaults", func(t *testing.T) {
		report := &models.Report{ID: reportID("r-default"), VacancyText: "x", AnalysisJSON: "{}"}
		require.NoError(t, s.CreateReport(ctx, report))
		assert.False(t, report.CreatedAt.IsZero())
	})

	t.Run("Duplicate report", func(t *testing.T) {
		report := &models.Report{ID: reportID("dup"), VacancyText: "a", AnalysisJSON: "{}"}
		require.NoError(t, s.CreateReport(ctx, report))

		err := s.CreateReport(ctx, &models.Report{ID: report.ID, VacancyText: "b", AnalysisJSON: "{}"})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		got, err := s.GetReport(ctx, report.ID)
		require.NoError(t, err)
		assert.Equal(t, "a", got.VacancyText, "reports are immutable")
	})

	t.Run("Missing report", func(t *testing.T) {
		_, err := s.GetReport(ctx, reportID("missing"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Counting is monotonic", func(t *testing.T) {
		addr := email("mono")
		device := fp("mono")

		prevEmail, prevIdentity := 0, 0
		for i := 0; i < 4; i++ {
			lead := &models.Lead{Email: addr, ReportID: reportID("r1"), Fingerprint: device}
			require.NoError(t, s.InsertLead(ctx, lead))
			assert.NotZero(t, lead.ID)
			assert.False(t, lead.CreatedAt.IsZero())

			byEmail, err := s.CountByEmail(ctx, addr)
			require.NoError(t, err)
			byIdentity, err := s.CountByIdentity(ctx, "", device)
			require.NoError(t, err)

			assert.Equal(t, prevEmail+1, byEmail)
			assert.Equal(t, prevIdentity+1, byIdentity)
			prevEmail, prevIdentity = byEmail, byIdentity
		}
	})

	t.Run("Email comparison ignores case", func(t *testing.T) {
		addr := email("case")
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: addr}))

		n, err := s.CountByEmail(ctx, strings.ToUpper(addr))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Identity uses OR across ip and fingerprint", func(t *testing.T) {
		sharedIP := ip(1)
		device := fp("or")

		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: email("or1"), IPAddress: sharedIP}))
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: email("or2"), Fingerprint: device}))
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: email("or3"), IPAddress: sharedIP, Fingerprint: device}))

		n, err := s.CountByIdentity(ctx, sharedIP, "")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.CountByIdentity(ctx, "", device)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.CountByIdentity(ctx, sharedIP, device)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("Empty identity matches nothing", func(t *testing.T) {
		// Rows with absent signals exist from earlier subtests.
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: email("bare")}))

		n, err := s.CountByIdentity(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = s.CountByEmail(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Delete requires criteria", func(t *testing.T) {
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: email("keep")}))

		deleted, err := s.DeleteByIdentity(ctx, models.Identity{})
		assert.ErrorIs(t, err, ErrNoCriteria)
		assert.Zero(t, deleted)

		n, err := s.CountByEmail(ctx, email("keep"))
		require.NoError(t, err)
		assert.Equal(t, 1, n, "nothing may be deleted without criteria")
	})

	t.Run("Delete uses OR semantics", func(t *testing.T) {
		addr := email("del")
		delIP := ip(2)
		device := fp("del")
		other := email("del-other")

		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: addr}))
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: email("del-ip"), IPAddress: delIP}))
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: email("del-fp"), Fingerprint: device}))
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: other, IPAddress: ip(3)}))

		deleted, err := s.DeleteByIdentity(ctx, models.Identity{Email: addr, IPAddress: delIP, Fingerprint: device})
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		n, err := s.CountByEmail(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "unrelated rows survive")

		n, err = s.CountByEmail(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Delete single lead", func(t *testing.T) {
		addr := email("single")
		first := &models.Lead{Email: addr}
		second := &models.Lead{Email: addr}
		require.NoError(t, s.InsertLead(ctx, first))
		require.NoError(t, s.InsertLead(ctx, second))

		require.NoError(t, s.DeleteLead(ctx, second.ID))
		assert.ErrorIs(t, s.DeleteLead(ctx, second.ID), ErrNotFound)

		n, err := s.CountByEmail(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Reset leaves reports intact", func(t *testing.T) {
		report := &models.Report{ID: reportID("kept"), VacancyText: "v", AnalysisJSON: "{}"}
		require.NoError(t, s.CreateReport(ctx, report))
		addr := email("kept")
		require.NoError(t, s.InsertLead(ctx, &models.Lead{Email: addr, ReportID: report.ID}))

		_, err := s.DeleteByIdentity(ctx, models.Identity{Email: addr})
		require.NoError(t, err)

		_, err = s.GetReport(ctx, report.ID)
		assert.NoError(t, err)
	})

	t.Run("Concurrent inserts", func(t *testing.T) {
		addr := email("concurrent")
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.InsertLead(ctx, &models.Lead{Email: addr}))
			}()
		}
		wg.Wait()

		n, err := s.CountByEmail(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, 20, n)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}
