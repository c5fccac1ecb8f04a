package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/client/clienttest"
	"github.com/parcelpal/internal/client/poll"
	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOf(t *testing.T) {
	rating := 4
	cases := []struct {
		name   string
		d      *client.Delivery
		role   Role
		expect Phase
	}{
		{"nil", nil, RoleSender, PhaseNone},
		{"pending sender", &client.Delivery{Status: constants.DeliveryStatusPending}, RoleSender, PhaseWaitingForPartner},
		{"pending partner", &client.Delivery{Status: constants.DeliveryStatusPending}, RolePartner, PhaseAvailable},
		{"accepted no photo", &client.Delivery{Status: constants.DeliveryStatusAccepted}, RoleSender, PhaseAwaitingItemPhoto},
		{"accepted photo sender", &client.Delivery{Status: constants.DeliveryStatusAccepted, ItemPhotoURL: "/u/a.png"}, RoleSender, PhaseVerifyItem},
		{"accepted photo partner", &client.Delivery{Status: constants.DeliveryStatusAccepted, ItemPhotoURL: "/u/a.png"}, RolePartner, PhaseAwaitingVerification},
		{"picked up", &client.Delivery{Status: constants.DeliveryStatusPickedUp}, RolePartner, PhaseInTransit},
		{"in transit", &client.Delivery{Status: constants.DeliveryStatusInTransit}, RoleSender, PhaseInTransit},
		{"delivered sender", &client.Delivery{Status: constants.DeliveryStatusDelivered}, RoleSender, PhaseConfirmReceipt},
		{"delivered partner", &client.Delivery{Status: constants.DeliveryStatusDelivered}, RolePartner, PhaseAwaitingConfirmation},
		{"completed unrated", &client.Delivery{Status: constants.DeliveryStatusCompleted}, RoleSender, PhaseRate},
		{"completed rated", &client.Delivery{Status: constants.DeliveryStatusCompleted, Rating: &rating}, RoleSender, PhaseDone},
		{"completed partner", &client.Delivery{Status: constants.DeliveryStatusCompleted}, RolePartner, PhaseDone},
		{"disputed", &client.Delivery{Status: constants.DeliveryStatusDisputed}, RoleSender, PhaseDisputed},
		{"cancelled", &client.Delivery{Status: constants.DeliveryStatusCancelled}, RolePartner, PhaseCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, PhaseOf(tc.d, tc.role))
		})
	}
}

func TestSenderAndPartnerDriveDeliveryToCompletion(t *testing.T) {
	srv := clienttest.NewServer(t)
	ctx := context.Background()
	senderAPI := srv.SignUp(t, "asha@example.com", "Asha")
	partnerAPI := srv.SignUp(t, "ravi@example.com", "Ravi")

	sender := NewSenderView(senderAPI, Options{})
	partner := NewPartnerView(partnerAPI, geo.StaticSource{Point: clienttest.Near}, "Ravi", "9123456789", Options{})

	created, err := sender.Create(ctx, clienttest.Form("Documents"))
	require.NoError(t, err)
	assert.Equal(t, PhaseWaitingForPartner, sender.Phase())
	require.Len(t, sender.History(), 1)
	assert.Greater(t, created.Distance, 0.0)

	require.NoError(t, partner.RefreshNearby(ctx))
	nearby := partner.Nearby()
	require.Len(t, nearby, 1)
	assert.Equal(t, created.ID, nearby[0].ID)
	pos, ok := partner.Position()
	require.True(t, ok)
	assert.Equal(t, clienttest.Near, pos)

	accepted, err := partner.Accept(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, accepted.Chat)
	assert.Empty(t, partner.Nearby())
	assert.Equal(t, PhaseAwaitingItemPhoto, partner.Phase())

	require.NoError(t, sender.Refresh(ctx))
	assert.Equal(t, PhaseAwaitingItemPhoto, sender.Phase())

	upload, err := partner.UploadItemPhoto(ctx, "item.png", clienttest.PNG(t))
	require.NoError(t, err)
	assert.NotEmpty(t, upload.ImageURL)
	assert.Equal(t, PhaseAwaitingVerification, partner.Phase())

	require.NoError(t, sender.Refresh(ctx))
	assert.Equal(t, PhaseVerifyItem, sender.Phase())
	verified, err := sender.VerifyItem(ctx, true)
	require.NoError(t, err)
	assert.True(t, verified.ItemVerified)
	assert.Equal(t, PhaseInTransit, sender.Phase())

	require.NoError(t, partner.Refresh(ctx))
	moving, err := partner.MarkInTransit(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.DeliveryStatusInTransit, moving.Status)

	delivered, err := partner.UploadDeliveryPhoto(ctx, "handover.png", clienttest.PNG(t))
	require.NoError(t, err)
	assert.Equal(t, constants.DeliveryStatusDelivered, delivered.Status)
	assert.NotEmpty(t, delivered.DeliveryPhotoURL)
	assert.Nil(t, partner.Active())
	assert.Equal(t, PhaseAwaitingConfirmation, partner.Phase())

	require.NoError(t, sender.Refresh(ctx))
	assert.Equal(t, PhaseConfirmReceipt, sender.Phase())
	completed, err := sender.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.DeliveryStatusCompleted, completed.Status)
	assert.Equal(t, PhaseRate, sender.Phase())
	assert.Nil(t, sender.Active())

	require.NoError(t, sender.Refresh(ctx))
	assert.Equal(t, PhaseRate, sender.Phase(), "finished delivery stays visible")

	done := NewCompletionView(senderAPI, created.ID)
	_, err = done.Load(ctx)
	require.NoError(t, err)
	_, err = done.Rate(ctx, 6, "")
	assert.True(t, client.IsValidation(err))

	rated, err := done.Rate(ctx, 5, " quick and careful ")
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 5, *rated.Rating)

	_, err = done.Rate(ctx, 4, "")
	assert.ErrorIs(t, err, ErrAlreadyRated)
}

func TestCancelAfterPickupNeedsEmergency(t *testing.T) {
	srv := clienttest.NewServer(t)
	ctx := context.Background()
	sender := NewSenderView(srv.SignUp(t, "asha@example.com", "Asha"), Options{})
	partner := NewPartnerView(srv.SignUp(t, "ravi@example.com", "Ravi"), geo.StaticSource{Point: clienttest.Near}, "Ravi", "9123456789", Options{})

	created, err := sender.Create(ctx, clienttest.Form("Keys"))
	require.NoError(t, err)
	_, err = partner.Accept(ctx, created.ID)
	require.NoError(t, err)
	_, err = partner.UploadItemPhoto(ctx, "keys.png", clienttest.PNG(t))
	require.NoError(t, err)
	require.NoError(t, sender.Refresh(ctx))
	_, err = sender.VerifyItem(ctx, true)
	require.NoError(t, err)

	_, err = sender.Cancel(ctx, false, "")
	require.Error(t, err)
	assert.True(t, client.IsValidation(err))
	assert.Equal(t, constants.DeliveryStatusPickedUp, sender.Active().Status, "state is unchanged")

	cancelled, err := sender.Cancel(ctx, true, "")
	require.NoError(t, err)
	assert.Equal(t, constants.DeliveryStatusCancelled, cancelled.Status)
	assert.Equal(t, constants.CancelReasonSenderEmergency, cancelled.CancelReason)
	assert.Equal(t, PhaseCancelled, sender.Phase())

	require.NoError(t, partner.Refresh(ctx))
	assert.Equal(t, PhaseCancelled, partner.Phase(), "partner sees the cancellation on the next poll")
}

func TestSecondAcceptConflictsAndKeepsState(t *testing.T) {
	srv := clienttest.NewServer(t)
	ctx := context.Background()
	sender := NewSenderView(srv.SignUp(t, "asha@example.com", "Asha"), Options{})
	first := NewPartnerView(srv.SignUp(t, "ravi@example.com", "Ravi"), geo.StaticSource{Point: clienttest.Near}, "Ravi", "9123456789", Options{})
	second := NewPartnerView(srv.SignUp(t, "meena@example.com", "Meena"), geo.StaticSource{Point: clienttest.Near}, "Meena", "9988776655", Options{})

	created, err := sender.Create(ctx, clienttest.Form("Parcel"))
	require.NoError(t, err)
	require.NoError(t, second.RefreshNearby(ctx))
	require.Len(t, second.Nearby(), 1)

	_, err = first.Accept(ctx, created.ID)
	require.NoError(t, err)

	_, err = second.Accept(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, client.IsConflict(err))
	assert.Nil(t, second.Active())
	assert.Len(t, second.Nearby(), 1, "list is corrected by the next poll")

	require.NoError(t, second.RefreshNearby(ctx))
	assert.Empty(t, second.Nearby())
}

func TestActionsWithoutActiveDelivery(t *testing.T) {
	srv := clienttest.NewServer(t)
	ctx := context.Background()
	sender := NewSenderView(srv.SignUp(t, "asha@example.com", "Asha"), Options{})
	partner := NewPartnerView(srv.SignUp(t, "ravi@example.com", "Ravi"), nil, "Ravi", "9123456789", Options{})

	_, err := sender.Complete(ctx)
	assert.ErrorIs(t, err, ErrNoActiveDelivery)
	_, err = sender.Cancel(ctx, true, "")
	assert.ErrorIs(t, err, ErrNoActiveDelivery)
	_, err = partner.UploadItemPhoto(ctx, "item.png", clienttest.PNG(t))
	assert.ErrorIs(t, err, ErrNoActiveDelivery)
	assert.ErrorIs(t, partner.RefreshNearby(ctx), geo.ErrNoFix)

	form := clienttest.Form("Cake")
	form.Phone = "12345"
	_, err = sender.Create(ctx, form)
	require.Error(t, err)
	assert.True(t, client.IsValidation(err))
	assert.Empty(t, sender.History())
	assert.Equal(t, PhaseNone, sender.Phase())
}

func TestSenderViewPollsUntilStopped(t *testing.T) {
	srv := clienttest.NewServer(t)
	ctx := context.Background()
	api := srv.SignUp(t, "asha@example.com", "Asha")

	sender := NewSenderView(api, Options{ActiveInterval: 20 * time.Millisecond, ListInterval: 20 * time.Millisecond})
	changes := make(chan struct{}, 64)
	sender.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	require.NoError(t, sender.Start(ctx))
	assert.ErrorIs(t, sender.Start(ctx), poll.ErrRunning)
	assert.True(t, sender.Running())

	created, err := api.CreateDelivery(ctx, clienttest.Form("Books"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		active := sender.Active()
		return active != nil && active.ID == created.ID && len(sender.History()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, changes)

	sender.Stop()
	assert.False(t, sender.Running())

	_, err = api.Cancel(ctx, created.ID, client.CancelOptions{})
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, constants.DeliveryStatusPending, sender.Active().Status, "stopped view no longer polls")

	require.NoError(t, sender.Start(ctx))
	defer sender.Stop()
	require.Eventually(t, func() bool { return sender.Phase() == PhaseCancelled }, 2*time.Second, 10*time.Millisecond)
}
