package application

import (
	"sync"
	"testing"

	"github.com/AzielCF/az-crm/conversation/infrastructure"
	"github.com/AzielCF/az-crm/conversation/repository"
	"github.com/AzielCF/az-crm/pkg/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(tenantID, code string, payload any) {
	n.mu.Lock()
	n.events = append(n.events, code)
	n.mu.Unlock()
}

func (n *recordingNotifier) count(code string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == code {
			c++
		}
	}
	return c
}

type fixture struct {
	repo     *repository.GormRepository
	notifier *recordingNotifier
	resolver *Resolver
	recorder *Recorder
	convs    *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLite(t, repository.Models()...)
	repo := repository.NewGormRepository(db)
	n := &recordingNotifier{}
	return &fixture{
		repo:     repo,
		notifier: n,
		resolver: NewResolver(repo, infrastructure.NewMemoryLocker(), n),
		recorder: NewRecorder(repo, n),
		convs:    NewConversationService(repo, n),
	}
}
