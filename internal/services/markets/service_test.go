package markets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/cache"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/storage/memory"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

var (
	owner = principal.Projection{ID: "u-owner", Email: "owner@example.com", Role: principal.RoleAnalyst}
	other = principal.Projection{ID: "u-other", Email: "other@example.com", Role: principal.RoleAnalyst}
	admin = principal.Projection{ID: "u-admin", Email: "admin@example.com", Role: principal.RoleAdmin}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.New(), cache.NewMemory(), logger.NewDefault("markets-test"))
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, Input{Name: "EV charging", Industry: "automotive"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, owner.ID, created.OwnerID)

	got, err := svc.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	require.Equal(t, "EV charging", got.Name)
}

func TestCreateValidatesAndSanitizes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, Input{Name: "   "})
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	created, err := svc.Create(ctx, owner, Input{Name: "<b>EV</b> charging"})
	require.NoError(t, err)
	require.Equal(t, "&lt;b&gt;EV&lt;/b&gt; charging", created.Name)
}

func TestCreateDuplicateNameConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, Input{Name: "EV charging"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner, Input{Name: "EV charging"})
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	// A different owner can reuse the name.
	_, err = svc.Create(ctx, other, Input{Name: "EV charging"})
	require.NoError(t, err)
}

func TestOwnershipHidesForeignMarkets(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, Input{Name: "EV charging"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other, created.ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// Admin sees everything.
	_, err = svc.Get(ctx, admin, created.ID)
	require.NoError(t, err)
}

func TestListIsScopedToOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, Input{Name: "EV charging"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, other, Input{Name: "Pet insurance"})
	require.NoError(t, err)

	mine, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "EV charging", mine[0].Name)
}

func TestListAdminSeesAllOwners(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, Input{Name: "EV charging"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, other, Input{Name: "Pet insurance"})
	require.NoError(t, err)

	all, err := svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, Input{Name: "EV charging"})
	require.NoError(t, err)

	// Prime the list cache.
	_, err = svc.List(ctx, owner)
	require.NoError(t, err)

	_, err = svc.Update(ctx, owner, created.ID, Input{Name: "EV fast charging"})
	require.NoError(t, err)

	listed, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, "EV fast charging", listed[0].Name)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, Input{Name: "EV charging"})
	require.NoError(t, err)

	require.True(t, apperr.IsKind(svc.Delete(ctx, other, created.ID), apperr.KindNotFound))
	require.NoError(t, svc.Delete(ctx, owner, created.ID))

	_, err = svc.Get(ctx, owner, created.ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
