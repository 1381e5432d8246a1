package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/conversation/domain"
	"github.com/AzielCF/az-crm/conversation/repository"
	"github.com/AzielCF/az-crm/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) *repository.GormRepository {
	db := testutil.NewSQLite(t, repository.Models()...)
	return repository.NewGormRepository(db)
}

func newConversation(id string) *domain.Conversation {
	return &domain.Conversation{
		ID:           id,
		TenantID:     "t1",
		SessionID:    "s1",
		RemoteJID:    "5511999998888@s.whatsapp.net",
		Phone:        "5511999998888",
		Status:       domain.ConversationOpen,
		AgentEnabled: true,
	}
}

func TestSessionLifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	s := &domain.Session{ID: "s1", TenantID: "t1", Name: "Ventas"}
	require.NoError(t, repo.CreateSession(ctx, s))
	assert.Equal(t, domain.SessionPending, s.Status)
	assert.ErrorIs(t, repo.CreateSession(ctx, &domain.Session{ID: "s1", TenantID: "t2"}), domain.ErrDuplicateSession)

	s.Status = domain.SessionConnected
	s.PhoneNumber = "5511000000000"
	require.NoError(t, repo.UpdateSession(ctx, s))

	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionConnected, got.Status)
	assert.Equal(t, "5511000000000", got.PhoneNumber)

	_, err = repo.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	list, err := repo.ListSessions(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateConversation_AliasUniqueness(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateConversation(ctx, newConversation("c1"), []string{"phone:5511999998888", "phone:551199998888"}))

	err := repo.CreateConversation(ctx, newConversation("c2"), []string{"phone:551199998888"})
	assert.ErrorIs(t, err, domain.ErrDuplicateAlias)

	// la transacción revierte la conversación huérfana
	_, err = repo.GetConversation(ctx, "t1", "c2")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	found, err := repo.FindByAliases(ctx, "t1", "s1", []string{"phone:551199998888", "lid:999"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c1", found[0].ID)

	// otro tenant no ve los alias
	found, err = repo.FindByAliases(ctx, "t2", "s1", []string{"phone:551199998888"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestInsertMessage_Idempotent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateConversation(ctx, newConversation("c1"), []string{"phone:5511999998888"}))

	msg := &domain.Message{TenantID: "t1", SessionID: "s1", ConversationID: "c1", ProviderMessageID: "WAMID.1",
		Direction: domain.DirectionInbound, SenderType: domain.SenderContact, Body: "hola", Type: domain.MessageText, Status: domain.StatusReceived}
	created, err := repo.InsertMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &domain.Message{TenantID: "t1", SessionID: "s1", ConversationID: "c1", ProviderMessageID: "WAMID.1",
		Direction: domain.DirectionInbound, SenderType: domain.SenderContact, Body: "hola otra vez", Type: domain.MessageText, Status: domain.StatusReceived}
	created, err = repo.InsertMessage(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetMessageByProviderID(ctx, "t1", "s1", "WAMID.1")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "hola", got.Body)
}

func TestTouchConversation_OnlyMovesForward(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	conv := newConversation("c1")
	conv.Status = domain.ConversationClosed
	require.NoError(t, repo.CreateConversation(ctx, conv, []string{"phone:5511999998888"}))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := &domain.Message{ID: "m2", ConversationID: "c1", Direction: domain.DirectionInbound, Body: "segundo", Type: domain.MessageText, SentAt: base.Add(time.Minute)}
	older := &domain.Message{ID: "m1", ConversationID: "c1", Direction: domain.DirectionInbound, Body: "primero", Type: domain.MessageText, SentAt: base}

	require.NoError(t, repo.TouchConversation(ctx, "c1", newer))
	require.NoError(t, repo.TouchConversation(ctx, "c1", older))

	got, err := repo.GetConversation(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "m2", got.LastMessageID)
	assert.Equal(t, "segundo", got.LastMessagePreview)
	assert.Equal(t, 2, got.UnreadCount)
	assert.Equal(t, domain.ConversationOpen, got.Status)

	human := &domain.Message{ID: "m3", ConversationID: "c1", Direction: domain.DirectionOutbound, SenderType: domain.SenderUser, FromMe: true, Body: "ya te atiendo", Type: domain.MessageText, SentAt: base.Add(2 * time.Minute)}
	require.NoError(t, repo.TouchConversation(ctx, "c1", human))
	got, err = repo.GetConversation(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCount)
	assert.Equal(t, "m3", got.LastMessageID)
}

func TestMergeInto(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	survivor := newConversation("c1")
	dup := newConversation("c2")
	dup.RemoteJID = "777@lid"
	dup.Phone = ""
	require.NoError(t, repo.CreateConversation(ctx, survivor, []string{"phone:5511999998888"}))
	require.NoError(t, repo.CreateConversation(ctx, dup, []string{"lid:777"}))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, cid := range []string{"c1", "c2"} {
		m := &domain.Message{TenantID: "t1", SessionID: "s1", ConversationID: cid, ProviderMessageID: "P" + cid,
			Direction: domain.DirectionInbound, SenderType: domain.SenderContact, Body: "msg " + cid, Type: domain.MessageText,
			Status: domain.StatusReceived, SentAt: base.Add(time.Duration(i) * time.Minute)}
		_, err := repo.InsertMessage(ctx, m)
		require.NoError(t, err)
		require.NoError(t, repo.TouchConversation(ctx, cid, m))
	}

	require.NoError(t, repo.MergeInto(ctx, "c1", []string{"c2"}))

	got, err := repo.GetConversation(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UnreadCount)
	assert.Equal(t, "msg c2", got.LastMessagePreview)

	merged, err := repo.GetConversation(ctx, "t1", "c2")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationMerged, merged.Status)
	assert.Equal(t, "c1", merged.MergedIntoID)

	ids, err := repo.MergedIDs(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids)

	msgs, err := repo.ListMessages(ctx, "t1", "c1", 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg c1", msgs[0].Body)
	assert.Equal(t, "msg c2", msgs[1].Body)

	keys, err := repo.ListAliases(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lid:777", "phone:5511999998888"}, keys)

	found, err := repo.FindByAliases(ctx, "t1", "s1", []string{"lid:777"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c1", found[0].ID)
}

func TestClaimEchoAndAttachProviderID(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateConversation(ctx, newConversation("c1"), []string{"phone:5511999998888"}))

	local := &domain.Message{TenantID: "t1", SessionID: "s1", ConversationID: "c1", ProviderMessageID: domain.LocalIDPrefix + "abc",
		Direction: domain.DirectionOutbound, SenderType: domain.SenderAgent, FromMe: true, Body: "¡Hola! ¿En qué te ayudo?",
		Type: domain.MessageText, Status: domain.StatusPending}
	_, err := repo.InsertMessage(ctx, local)
	require.NoError(t, err)

	_, err = repo.ClaimEcho(ctx, "c1", "otro texto", time.Now().Add(-time.Minute), "WAMID.X")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	claimed, err := repo.ClaimEcho(ctx, "c1", "¡Hola! ¿En qué te ayudo?", time.Now().Add(-time.Minute), "WAMID.X")
	require.NoError(t, err)
	assert.Equal(t, local.ID, claimed.ID)
	assert.Equal(t, domain.StatusSent, claimed.Status)

	ok, err := repo.AttachProviderID(ctx, local.ID, "WAMID.X", domain.StatusSent)
	require.NoError(t, err)
	assert.False(t, ok, "already attached by the echo")
}

func TestListMessages_BeforeCursor(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateConversation(ctx, newConversation("c1"), []string{"phone:5511999998888"}))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := repo.InsertMessage(ctx, &domain.Message{TenantID: "t1", SessionID: "s1", ConversationID: "c1",
			ProviderMessageID: string(rune('A' + i)), Direction: domain.DirectionInbound, SenderType: domain.SenderContact,
			Body: string(rune('A' + i)), Type: domain.MessageText, Status: domain.StatusReceived, SentAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	cursor := base.Add(3 * time.Second)
	msgs, err := repo.ListMessages(ctx, "t1", "c1", 2, &cursor)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "B", msgs[0].Body)
	assert.Equal(t, "C", msgs[1].Body)
}

func TestStatusBacklog(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveStatusBacklog(ctx, "t1", "s1", "P1", domain.StatusDelivered))
	require.NoError(t, repo.SaveStatusBacklog(ctx, "t1", "s1", "P1", domain.StatusRead))

	statuses, err := repo.PopStatusBacklog(ctx, "t1", "s1", "P1")
	require.NoError(t, err)
	assert.Equal(t, []domain.MessageStatus{domain.StatusDelivered, domain.StatusRead}, statuses)

	statuses, err = repo.PopStatusBacklog(ctx, "t1", "s1", "P1")
	require.NoError(t, err)
	assert.Empty(t, statuses)

	require.NoError(t, repo.SaveStatusBacklog(ctx, "t1", "s1", "P2", domain.StatusRead))
	n, err := repo.PurgeStatusBacklog(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
