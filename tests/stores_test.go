package tests

import (
	"context"
	"testing"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStoreSvc() (service.StoreService, *stubStoreRepo) {
	repo := newStubStoreRepo()
	return service.NewStoreService(repo), repo
}

func seedStore(repo *stubStoreRepo, name string, status model.ModerationStatus, submitter uuid.UUID) *model.Store {
	s := &model.Store{
		ID:       uuid.New(),
		Name:     name,
		Location: "Downtown",
		Moderation: model.Moderation{
			Status:      status,
			SubmittedBy: submitter,
		},
		Active: true,
	}
	repo.stores[s.ID] = s
	return s
}

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCreateStore_StartsPending(t *testing.T) {
	svc, _ := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}

	resp, err := svc.Create(context.Background(), shopper, dto.CreateStoreRequest{
		Name:     "FreshMart",
		Location: "Springfield",
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	assert.True(t, resp.Active)
}

func TestCreateStore_CoordinatesMustBePaired(t *testing.T) {
	svc, _ := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}

	_, err := svc.Create(context.Background(), shopper, dto.CreateStoreRequest{
		Name:     "FreshMart",
		Location: "Springfield",
		Latitude: decPtr(40.5),
	})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestCreateStore_LatitudeOutOfRange(t *testing.T) {
	svc, _ := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}

	_, err := svc.Create(context.Background(), shopper, dto.CreateStoreRequest{
		Name:      "FreshMart",
		Location:  "Springfield",
		Latitude:  decPtr(91),
		Longitude: decPtr(10),
	})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestApproveStore(t *testing.T) {
	svc, repo := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}
	moderator := service.Viewer{ID: uuid.New(), Moderator: true}
	s := seedStore(repo, "FreshMart", model.StatusPending, shopper.ID)

	resp, err := svc.Approve(context.Background(), moderator, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status)
}

func TestApproveStore_SecondApproveConflicts(t *testing.T) {
	svc, repo := buildStoreSvc()
	moderator := service.Viewer{ID: uuid.New(), Moderator: true}
	s := seedStore(repo, "FreshMart", model.StatusPending, uuid.New())

	_, err := svc.Approve(context.Background(), moderator, s.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), moderator, s.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))
}

func TestRejectStore_NoUnreject(t *testing.T) {
	svc, repo := buildStoreSvc()
	moderator := service.Viewer{ID: uuid.New(), Moderator: true}
	s := seedStore(repo, "FreshMart", model.StatusPending, uuid.New())

	_, err := svc.Reject(context.Background(), moderator, s.ID)
	require.NoError(t, err)

	// A rejected entity never becomes approved.
	_, err = svc.Approve(context.Background(), moderator, s.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))
}

func TestApproveStore_RequiresModerator(t *testing.T) {
	svc, repo := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}
	s := seedStore(repo, "FreshMart", model.StatusPending, shopper.ID)

	_, err := svc.Approve(context.Background(), shopper, s.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindPermission))
}

func TestGetStore_PendingHiddenFromThirdParties(t *testing.T) {
	svc, repo := buildStoreSvc()
	submitter := service.Viewer{ID: uuid.New()}
	other := service.Viewer{ID: uuid.New()}
	moderator := service.Viewer{ID: uuid.New(), Moderator: true}
	s := seedStore(repo, "FreshMart", model.StatusPending, submitter.ID)

	// Submitter and moderator see it; a third party gets 404, not 403.
	_, err := svc.Get(context.Background(), submitter, s.ID)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), moderator, s.ID)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), other, s.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestUpdateStore_SubmitterOnlyWhilePending(t *testing.T) {
	svc, repo := buildStoreSvc()
	submitter := service.Viewer{ID: uuid.New()}
	newName := "FreshMart North"

	pending := seedStore(repo, "FreshMart", model.StatusPending, submitter.ID)
	_, err := svc.Update(context.Background(), submitter, pending.ID, dto.UpdateStoreRequest{Name: &newName})
	assert.NoError(t, err)

	approved := seedStore(repo, "MegaStore", model.StatusApproved, submitter.ID)
	_, err = svc.Update(context.Background(), submitter, approved.ID, dto.UpdateStoreRequest{Name: &newName})
	assert.True(t, apierror.IsKind(err, apierror.KindPermission))
}

func TestUpdateStore_SingleCoordinateMergesWithStored(t *testing.T) {
	svc, repo := buildStoreSvc()
	submitter := service.Viewer{ID: uuid.New()}

	s := seedStore(repo, "FreshMart", model.StatusPending, submitter.ID)
	s.Latitude = decPtr(40.0)
	s.Longitude = decPtr(-74.0)

	// Only latitude in the request: the stored longitude fills the pair.
	resp, err := svc.Update(context.Background(), submitter, s.ID, dto.UpdateStoreRequest{Latitude: decPtr(41.5)})
	require.NoError(t, err)
	require.NotNil(t, resp.Latitude)
	require.NotNil(t, resp.Longitude)
	assert.True(t, resp.Latitude.Equal(decimal.NewFromFloat(41.5)))
	assert.True(t, resp.Longitude.Equal(decimal.NewFromFloat(-74.0)))

	// Without a stored counterpart a lone coordinate is still rejected.
	bare := seedStore(repo, "MegaStore", model.StatusPending, submitter.ID)
	_, err = svc.Update(context.Background(), submitter, bare.ID, dto.UpdateStoreRequest{Latitude: decPtr(10.0)})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestDeleteStore_RequiresModerator(t *testing.T) {
	svc, repo := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}
	s := seedStore(repo, "FreshMart", model.StatusApproved, shopper.ID)

	err := svc.Delete(context.Background(), shopper, s.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindPermission))

	moderator := service.Viewer{ID: uuid.New(), Moderator: true}
	require.NoError(t, svc.Delete(context.Background(), moderator, s.ID))
	assert.False(t, repo.stores[s.ID].Active)
}

// ── Preferred stores ──────────────────────────────────────────────────────────

func TestAddPreferredTwice_ExactlyOnce(t *testing.T) {
	svc, repo := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}
	s := seedStore(repo, "FreshMart", model.StatusApproved, uuid.New())

	require.NoError(t, svc.AddPreferred(context.Background(), shopper, s.ID))
	require.NoError(t, svc.AddPreferred(context.Background(), shopper, s.ID))

	prefs, err := svc.ListPreferred(context.Background(), shopper)
	require.NoError(t, err)
	assert.Len(t, prefs, 1)
	assert.Equal(t, s.ID, prefs[0].ID)
}

func TestAddPreferred_InvisibleStoreIsNotFound(t *testing.T) {
	svc, repo := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}
	s := seedStore(repo, "FreshMart", model.StatusPending, uuid.New())

	err := svc.AddPreferred(context.Background(), shopper, s.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestRemovePreferred_Idempotent(t *testing.T) {
	svc, repo := buildStoreSvc()
	shopper := service.Viewer{ID: uuid.New()}
	s := seedStore(repo, "FreshMart", model.StatusApproved, uuid.New())

	require.NoError(t, svc.AddPreferred(context.Background(), shopper, s.ID))
	require.NoError(t, svc.RemovePreferred(context.Background(), shopper, s.ID))
	require.NoError(t, svc.RemovePreferred(context.Background(), shopper, s.ID))

	prefs, err := svc.ListPreferred(context.Background(), shopper)
	require.NoError(t, err)
	assert.Empty(t, prefs)
}
