package whatsapp

import (
	"context"
	"sync"
	"testing"
	"time"

	agentDomain "github.com/AzielCF/az-crm/agent/domain"
	convApp "github.com/AzielCF/az-crm/conversation/application"
	convDomain "github.com/AzielCF/az-crm/conversation/domain"
	convInfra "github.com/AzielCF/az-crm/conversation/infrastructure"
	"github.com/AzielCF/az-crm/conversation/repository"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/AzielCF/az-crm/pkg/presence"
	"github.com/AzielCF/az-crm/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedDispatch struct {
	mu    sync.Mutex
	calls []*convDomain.Message
	convs []string
}

func (c *capturedDispatch) HandleInbound(_ context.Context, conv *convDomain.Conversation, msg *convDomain.Message) (agentDomain.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, msg)
	c.convs = append(c.convs, conv.ID)
	return agentDomain.OutcomeQueued, nil
}

func (c *capturedDispatch) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fullQueue struct{}

func (fullQueue) Dispatch(msgworker.Job) error { return msgworker.ErrQueueFull }

type ingressFixture struct {
	ingress  *Ingress
	repo     *repository.GormRepository
	sessions *convApp.SessionService
	dispatch *capturedDispatch
	presence *presence.Tracker
}

func newIngressFixture(t *testing.T) *ingressFixture {
	t.Helper()
	db := testutil.NewSQLite(t, repository.Models()...)
	repo := repository.NewGormRepository(db)

	pool := msgworker.NewPool(2, 16)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	f := &ingressFixture{
		repo:     repo,
		sessions: convApp.NewSessionService(repo, nil),
		dispatch: &capturedDispatch{},
		presence: presence.NewTracker(),
	}
	f.ingress = &Ingress{
		Sessions:   f.sessions,
		Resolver:   convApp.NewResolver(repo, convInfra.NewMemoryLocker(), nil),
		Recorder:   convApp.NewRecorder(repo, nil),
		Dispatcher: f.dispatch,
		Queue:      pool,
		Presence:   f.presence,
	}
	_, err := f.sessions.Register(context.Background(), "t1", "s1", "Ventas")
	require.NoError(t, err)
	return f
}

func (f *ingressFixture) handle(t *testing.T, body string) Result {
	t.Helper()
	res, err := f.ingress.Handle(context.Background(), "", []byte(body))
	require.NoError(t, err)
	return res
}

func (f *ingressFixture) waitMessage(t *testing.T, providerID string) *convDomain.Message {
	t.Helper()
	var msg *convDomain.Message
	require.Eventually(t, func() bool {
		m, err := f.repo.GetMessageByProviderID(context.Background(), "t1", "s1", providerID)
		if err != nil {
			return false
		}
		msg = m
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return msg
}

func TestIngress_RejectsBadEnvelopes(t *testing.T) {
	f := newIngressFixture(t)
	ctx := context.Background()

	_, err := f.ingress.Handle(ctx, "", []byte(`{"event":"message","session":"nope","data":{}}`))
	var notFound pkgError.SessionNotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = f.ingress.Handle(ctx, "", []byte(`{"session":"s1"}`))
	var invalid pkgError.ValidationError
	assert.ErrorAs(t, err, &invalid)

	_, err = f.ingress.Handle(ctx, "", []byte(`not json`))
	assert.ErrorAs(t, err, &invalid)

	res := f.handle(t, `{"event":"call","session":"s1","data":{}}`)
	assert.Equal(t, ResultIgnored, res.Status)
}

func TestIngress_SessionLifecycle(t *testing.T) {
	f := newIngressFixture(t)
	ctx := context.Background()

	res := f.handle(t, `{"event":"qr_code","session":"s1","data":{"qr":"2@abc"}}`)
	assert.Equal(t, ResultProcessed, res.Status)
	s, err := f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, convDomain.SessionQR, s.Status)
	assert.Equal(t, "2@abc", s.QRCode)

	res, err = f.ingress.Handle(ctx, "s1", []byte(`{"event":"connected","data":{"jid":"5511999998888:3@s.whatsapp.net","pushName":"Tienda"}}`))
	require.NoError(t, err)
	assert.Equal(t, ResultProcessed, res.Status)
	s, err = f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, convDomain.SessionConnected, s.Status)
	assert.Equal(t, "5511999998888", s.PhoneNumber)
	assert.Empty(t, s.QRCode)

	f.handle(t, `{"event":"disconnected","session":"s1","data":{"reason":"logged out"}}`)
	s, err = f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, convDomain.SessionDisconnected, s.Status)
}

func TestIngress_MessageIsRecordedOnceAndDispatched(t *testing.T) {
	f := newIngressFixture(t)
	body := `{"event":"message","session":"s1","data":{
		"id":"3EB0A1","from":"123456789@lid","senderPn":"5511999998888@s.whatsapp.net",
		"pushName":"Ana","body":"hola","timestamp":1715351400}}`

	assert.Equal(t, ResultQueued, f.handle(t, body).Status)
	msg := f.waitMessage(t, "3EB0A1")
	assert.Equal(t, convDomain.DirectionInbound, msg.Direction)
	assert.Equal(t, time.Unix(1715351400, 0).UTC(), msg.SentAt.UTC())

	// reentrega del proveedor
	assert.Equal(t, ResultQueued, f.handle(t, body).Status)
	require.Eventually(t, func() bool { return f.dispatch.count() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.dispatch.count())

	conv, err := f.repo.GetConversation(context.Background(), "t1", msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", conv.ContactName)
	assert.Equal(t, "5511999998888", conv.Phone)

	// el mismo contacto escribiendo con su número cae en la misma conversación
	f.handle(t, `{"event":"message","session":"s1","data":{"id":"3EB0A2","remoteJid":"5511999998888@s.whatsapp.net","body":"¿siguen ahí?"}}`)
	second := f.waitMessage(t, "3EB0A2")
	assert.Equal(t, msg.ConversationID, second.ConversationID)
}

func TestIngress_FromMeStartsTakeoverWithoutDispatch(t *testing.T) {
	f := newIngressFixture(t)

	f.handle(t, `{"event":"message","session":"s1","data":{"id":"OUT-1","remoteJid":"5511999998888@s.whatsapp.net","fromMe":true,"body":"te llamo en 5"}}`)
	msg := f.waitMessage(t, "OUT-1")
	assert.Equal(t, convDomain.SenderUser, msg.SenderType)

	conv, err := f.repo.GetConversation(context.Background(), "t1", msg.ConversationID)
	require.NoError(t, err)
	assert.NotNil(t, conv.TakeoverAt)
	assert.Zero(t, f.dispatch.count())
}

func TestIngress_StatusBeforeMessageIsBacklogged(t *testing.T) {
	f := newIngressFixture(t)

	res := f.handle(t, `{"event":"message.ack","session":"s1","data":{"id":"OUT-9","ack":3}}`)
	assert.Equal(t, ResultProcessed, res.Status)

	f.handle(t, `{"event":"message","session":"s1","data":{"id":"OUT-9","remoteJid":"5511999998888@s.whatsapp.net","fromMe":true,"body":"listo"}}`)
	require.Eventually(t, func() bool {
		m, err := f.repo.GetMessageByProviderID(context.Background(), "t1", "s1", "OUT-9")
		return err == nil && m.Status == convDomain.StatusRead
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIngress_IgnoresBroadcastAndNewsletters(t *testing.T) {
	f := newIngressFixture(t)
	for _, remote := range []string{"status@broadcast", "120363000000@newsletter"} {
		res := f.handle(t, `{"event":"message","session":"s1","data":{"id":"X","remoteJid":"`+remote+`","body":"promo"}}`)
		assert.Equal(t, ResultIgnored, res.Status, remote)
	}
}

func TestIngress_PresenceUpdatesTracker(t *testing.T) {
	f := newIngressFixture(t)

	f.handle(t, `{"event":"presence","session":"s1","data":{"from":"5511999998888@c.us","state":"composing"}}`)
	assert.True(t, f.presence.IsComposing("s1", "5511999998888@s.whatsapp.net"))

	f.handle(t, `{"event":"presence","session":"s1","data":{"from":"5511999998888@c.us","state":"paused"}}`)
	assert.False(t, f.presence.IsComposing("s1", "5511999998888@s.whatsapp.net"))
}

func TestIngress_QueueFullAsksForRetry(t *testing.T) {
	f := newIngressFixture(t)
	f.ingress.Queue = fullQueue{}

	_, err := f.ingress.Handle(context.Background(), "", []byte(`{"event":"message","session":"s1","data":{"id":"A","remoteJid":"5511999998888@s.whatsapp.net","body":"hola"}}`))
	var unavailable pkgError.ServiceUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}
