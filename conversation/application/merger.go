package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/AzielCF/az-crm/conversation/domain"
	"github.com/sirupsen/logrus"
)

// MergeGroup describes one merge performed by MergeDuplicates.
type MergeGroup struct {
	SurvivorID string   `json:"survivor_id"`
	MergedIDs  []string `json:"merged_ids"`
}

// mergeConversations conserva la conversación más antigua y absorbe el resto.
func mergeConversations(ctx context.Context, tx domain.Repository, convs []*domain.Conversation) (*domain.Conversation, []string, error) {
	sorted := make([]*domain.Conversation, len(convs))
	copy(sorted, convs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	survivor := sorted[0]
	ids := make([]string, 0, len(sorted)-1)
	for _, dup := range sorted[1:] {
		absorbDuplicate(survivor, dup)
		ids = append(ids, dup.ID)
	}

	if err := tx.MergeInto(ctx, survivor.ID, ids); err != nil {
		return nil, nil, fmt.Errorf("merge into %s: %w", survivor.ID, err)
	}
	if err := tx.UpdateConversation(ctx, survivor); err != nil {
		return nil, nil, err
	}
	return survivor, ids, nil
}

func absorbDuplicate(s, d *domain.Conversation) {
	if s.RemoteJID == "" {
		s.RemoteJID = d.RemoteJID
	}
	if s.Phone == "" {
		s.Phone = d.Phone
	}
	if s.LID == "" {
		s.LID = d.LID
	}
	if d.ContactName != "" && !looksLikePhone(d.ContactName) &&
		(s.ContactName == "" || looksLikePhone(s.ContactName)) {
		s.ContactName = d.ContactName
	}
	if d.TakeoverAt != nil && (s.TakeoverAt == nil || d.TakeoverAt.After(*s.TakeoverAt)) {
		s.TakeoverAt = d.TakeoverAt
		s.TakeoverBy = d.TakeoverBy
	}
	s.AgentEnabled = s.AgentEnabled && d.AgentEnabled
	if d.Status == domain.ConversationOpen {
		s.Status = domain.ConversationOpen
	}
}

// MergeDuplicates barre las conversaciones vivas de una sesión y fusiona las que
// comparten teléfono (cualquier variante) o lid.
func (r *Resolver) MergeDuplicates(ctx context.Context, tenantID, sessionID string) ([]MergeGroup, error) {
	unlock, err := r.locker.Lock(ctx, resolveLockKey(tenantID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("acquire resolve lock: %w", err)
	}
	defer unlock()

	convs, err := r.repo.ListLiveConversations(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	var out []MergeGroup
	for _, group := range groupDuplicates(convs) {
		var result MergeGroup
		err := r.repo.Transaction(ctx, func(tx domain.Repository) error {
			survivor, ids, err := mergeConversations(ctx, tx, group)
			if err != nil {
				return err
			}
			result = MergeGroup{SurvivorID: survivor.ID, MergedIDs: ids}
			return tx.AddAliases(ctx, survivor, conversationKeys(survivor))
		})
		if err != nil {
			return out, err
		}
		out = append(out, result)
		logrus.WithFields(logrus.Fields{"tenant": tenantID, "session": sessionID, "survivor": result.SurvivorID}).
			Infof("[RESOLVER] Sweep merged %d duplicate(s)", len(result.MergedIDs))
		r.notifier.Notify(tenantID, EventConversationMerged, result)
	}
	return out, nil
}

// groupDuplicates une conversaciones con claves compartidas (union-find) y
// devuelve solo los grupos con más de un miembro, en orden de creación.
func groupDuplicates(convs []*domain.Conversation) [][]*domain.Conversation {
	parent := make([]int, len(convs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	owner := make(map[string]int)
	for i, c := range convs {
		for _, k := range conversationKeys(c) {
			if j, ok := owner[k]; ok {
				if a, b := find(i), find(j); a != b {
					parent[a] = b
				}
				continue
			}
			owner[k] = i
		}
	}

	byRoot := make(map[int][]*domain.Conversation)
	var roots []int
	for i, c := range convs {
		root := find(i)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], c)
	}

	var groups [][]*domain.Conversation
	for _, root := range roots {
		if len(byRoot[root]) > 1 {
			groups = append(groups, byRoot[root])
		}
	}
	return groups
}
