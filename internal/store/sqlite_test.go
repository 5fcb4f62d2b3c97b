package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lead-ingest/internal/model"
	"github.com/nhle/lead-ingest/internal/store"
	"github.com/nhle/lead-ingest/tests/testutil"
)

var _ store.Store = (*store.SQLiteStore)(nil)

func sampleLead(leadID int, email string, received time.Time) model.Lead {
	return model.Lead{
		LeadID:         leadID,
		Email:          email,
		Position:       "Vertrieb",
		Name:           "Jane Doe",
		Gender:         model.GenderFemale,
		Address:        "Musterstraße 1, 12345 Berlin",
		BirthDate:      time.Date(1990, 12, 24, 0, 0, 0, 0, time.UTC),
		Phone:          "+49 30 123456",
		BirthPlace:     "Berlin",
		SourceIP:       "203.0.113.5",
		InputKey:       "ABC-123",
		ReceivedAt:     received,
		DeliveryStatus: model.DeliveryPending,
	}
}

func TestCreateLeadRoundTrip(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	received := time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC)
	created, err := st.CreateLead(ctx, sampleLead(42, "jane@x.com", received))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	leads, err := st.PendingLeads(ctx, 0)
	require.NoError(t, err)
	require.Len(t, leads, 1)

	got := leads[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 42, got.LeadID)
	assert.Equal(t, "jane@x.com", got.Email)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, model.GenderFemale, got.Gender)
	assert.Equal(t, "Musterstraße 1, 12345 Berlin", got.Address)
	assert.Equal(t, "203.0.113.5", got.SourceIP)
	assert.Equal(t, "ABC-123", got.InputKey)
	assert.Equal(t, model.DeliveryPending, got.DeliveryStatus)
	assert.True(t, got.ReceivedAt.Equal(received))
	assert.True(t, got.BirthDate.Equal(
		time.Date(1990, 12, 24, 0, 0, 0, 0, time.UTC),
	))
}

func TestLeadExistsNaturalKeyOr(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := st.CreateLead(ctx, sampleLead(42, "jane@x.com", time.Now()))
	require.NoError(t, err)

	cases := []struct {
		name   string
		leadID int
		email  string
		want   bool
	}{
		{"both match", 42, "jane@x.com", true},
		{"lead id alone", 42, "other@x.com", true},
		{"email alone", 7, "jane@x.com", true},
		{"neither", 7, "other@x.com", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exists, err := st.LeadExists(ctx, tc.leadID, tc.email)
			require.NoError(t, err)
			assert.Equal(t, tc.want, exists)
		})
	}
}

func TestPendingLeadsOrderAndLimit(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := st.CreateLead(ctx, sampleLead(
			100+i,
			string(rune('a'+i))+"@x.com",
			base.AddDate(0, 0, 2-i), // insert newest first
		))
		require.NoError(t, err)
	}

	leads, err := st.PendingLeads(ctx, 0)
	require.NoError(t, err)
	require.Len(t, leads, 3)
	assert.Equal(t, 102, leads[0].LeadID) // oldest received first
	assert.Equal(t, 100, leads[2].LeadID)

	limited, err := st.PendingLeads(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateDeliveryStatus(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	created, err := st.CreateLead(ctx, sampleLead(42, "jane@x.com", time.Now()))
	require.NoError(t, err)

	require.NoError(t, st.UpdateDeliveryStatus(ctx, created.ID, model.DeliverySent))

	pending, err := st.PendingLeads(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = st.UpdateDeliveryStatus(ctx, "no-such-id", model.DeliverySent)
	assert.Error(t, err)
}

func TestDailyStatistics(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	day1 := time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

	for i, received := range []time.Time{day1, day1, day2} {
		_, err := st.CreateLead(ctx, sampleLead(
			200+i, string(rune('a'+i))+"@stats.com", received,
		))
		require.NoError(t, err)
	}

	require.NoError(t, st.UpdateDailyStatistics(ctx))

	stats, err := st.DailyStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, model.DailyStat{Date: "2024-06-14", Count: 2}, stats[0])
	assert.Equal(t, model.DailyStat{Date: "2024-06-15", Count: 1}, stats[1])

	// Re-running after new intake updates counts in place.
	_, err = st.CreateLead(ctx, sampleLead(300, "d@stats.com", day2))
	require.NoError(t, err)
	require.NoError(t, st.UpdateDailyStatistics(ctx))

	stats, err = st.DailyStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 2, stats[1].Count)
}
