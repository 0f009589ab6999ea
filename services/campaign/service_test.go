package campaign

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adagency-backoffice/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &ActiveCampaign{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestUpsertRefreshesOnHierarchyKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	snap := &Snapshot{
		Campaign: CampaignNode{
			ID:          "120200",
			Name:        "Acme Bakery Launch",
			DailyBudget: "300",
			StartTime:   "2024-01-01T00:00:00+0000",
			Payload:     json.RawMessage(`{"buying_type":"AUCTION"}`),
		},
		PageName: "Acme Bakery",
	}

	first, err := svc.Upsert(ctx, nil, snap)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.NotNil(t, first.CampaignStartTime)

	snap.Campaign.Name = "Acme Bakery Relaunch"
	snap.Campaign.Insights = &Insights{Spend: "11.50"}
	second, err := svc.Upsert(ctx, nil, snap)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	stored, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Bakery Relaunch", stored.CampaignName)
	require.Equal(t, "11.5", stored.Spend.String())

	// a different ad set is a different projection
	snap.AdSet = &AdSetNode{ID: "as-1"}
	third, err := svc.Upsert(ctx, nil, snap)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, third.ID)

	rows, err := svc.FindByCampaignID(ctx, "120200")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestUpsertRequiresCampaignID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Upsert(context.Background(), nil, &Snapshot{})
	require.ErrorIs(t, err, ErrMissingCampaignID)
}

func TestGetMissing(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrCampaignNotFound)
}
