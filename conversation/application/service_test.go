package application

import (
	"context"
	"testing"

	"github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessions := NewSessionService(f.repo, f.notifier)

	s, err := sessions.Register(ctx, "t1", "ventas", "Ventas")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, s.Status)

	_, err = sessions.Register(ctx, "t1", "ventas", "otra")
	var conflict pkgError.ConflictError
	assert.ErrorAs(t, err, &conflict)

	require.NoError(t, sessions.MarkQR(ctx, s, "2@abc"))
	require.NoError(t, sessions.MarkConnected(ctx, s, "5511999998888:12@s.whatsapp.net", "Tienda"))

	got, err := sessions.GetForTenant(ctx, "t1", "ventas")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionConnected, got.Status)
	assert.Equal(t, "5511999998888", got.PhoneNumber)
	assert.Empty(t, got.QRCode)
	assert.Equal(t, "Ventas", got.Name)
	assert.NotNil(t, got.ConnectedAt)

	_, err = sessions.GetForTenant(ctx, "t2", "ventas")
	var nf pkgError.NotFoundError
	assert.ErrorAs(t, err, &nf)

	require.NoError(t, sessions.MarkDisconnected(ctx, got, "logout"))
	assert.Equal(t, 1, f.notifier.count(EventSessionQR))
	assert.Equal(t, 1, f.notifier.count(EventSessionConnected))
	assert.Equal(t, 1, f.notifier.count(EventSessionDisconnected))
}

func TestConversationService_TakeoverAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := resolve(t, f, "5511999998888@s.whatsapp.net", "", "").Conversation

	taken, err := f.convs.Takeover(ctx, "t1", conv.ID, "op-1")
	require.NoError(t, err)
	require.NotNil(t, taken.TakeoverAt)

	released, err := f.convs.Release(ctx, "t1", conv.ID)
	require.NoError(t, err)
	assert.Nil(t, released.TakeoverAt)
	assert.Empty(t, released.TakeoverBy)

	got, err := f.convs.Get(ctx, "t1", conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TakeoverAt)
	assert.Equal(t, 1, f.notifier.count(EventTakeoverReleased))
}

func TestConversationService_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := resolve(t, f, "5511999998888@s.whatsapp.net", "", "").Conversation

	_, err := f.convs.Get(ctx, "t1", "missing")
	var nf pkgError.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = f.convs.Get(ctx, "t2", conv.ID)
	assert.ErrorAs(t, err, &nf, "other tenant cannot see it")

	_, err = f.convs.SetStatus(ctx, "t1", conv.ID, domain.ConversationMerged)
	var ve pkgError.ValidationError
	assert.ErrorAs(t, err, &ve)
}
