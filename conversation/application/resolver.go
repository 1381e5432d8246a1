package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/jid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const maxResolveAttempts = 3

type ResolveInput struct {
	TenantID  string
	SessionID string
	RemoteJID string
	// AltJID es el otro identificador del mismo contacto cuando el proveedor lo envía (senderPn / remoteJidAlt).
	AltJID   string
	PushName string
}

type ResolveResult struct {
	Conversation *domain.Conversation
	Created      bool
	MergedIDs    []string
}

// Resolver mapea identificadores de contacto a una única conversación por tenant y sesión.
type Resolver struct {
	repo     domain.Repository
	locker   Locker
	notifier Notifier
	flight   singleflight.Group
}

func NewResolver(repo domain.Repository, locker Locker, notifier Notifier) *Resolver {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Resolver{repo: repo, locker: locker, notifier: notifier}
}

// Resolve returns the canonical conversation for the contact, creating it or merging
// duplicates as needed. Identical concurrent calls share one execution.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (*ResolveResult, error) {
	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.SessionID) == "" {
		return nil, pkgError.ValidationError("tenant and session are required")
	}
	ident, err := parseIdentity(in.RemoteJID, in.AltJID)
	if err != nil {
		return nil, err
	}
	keys := ident.keys()

	flightKey := in.TenantID + "|" + in.SessionID + "|" + strings.Join(keys, ",") + "|" + in.PushName
	v, err, shared := r.flight.Do(flightKey, func() (any, error) {
		return r.resolve(ctx, in, ident, keys)
	})
	if err != nil {
		return nil, err
	}

	res := v.(*ResolveResult)
	if shared {
		conv := *res.Conversation
		cp := *res
		cp.Conversation = &conv
		return &cp, nil
	}
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, in ResolveInput, ident identity, keys []string) (*ResolveResult, error) {
	unlock, err := r.locker.Lock(ctx, resolveLockKey(in.TenantID, in.SessionID))
	if err != nil {
		return nil, fmt.Errorf("acquire resolve lock: %w", err)
	}
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		res, err := r.resolveOnce(ctx, in, ident, keys)
		if err == nil {
			r.announce(in.TenantID, res)
			return res, nil
		}
		if !errors.Is(err, domain.ErrDuplicateAlias) {
			return nil, err
		}
		lastErr = err
		logrus.WithFields(logrus.Fields{
			"tenant":  in.TenantID,
			"session": in.SessionID,
			"remote":  in.RemoteJID,
		}).Warnf("[RESOLVER] Alias race, retrying (%d/%d)", attempt, maxResolveAttempts)
	}
	return nil, lastErr
}

func (r *Resolver) resolveOnce(ctx context.Context, in ResolveInput, ident identity, keys []string) (*ResolveResult, error) {
	res := &ResolveResult{}
	err := r.repo.Transaction(ctx, func(tx domain.Repository) error {
		found, err := tx.FindByAliases(ctx, in.TenantID, in.SessionID, keys)
		if err != nil {
			return err
		}

		switch len(found) {
		case 0:
			conv := newConversation(in, ident)
			if err := tx.CreateConversation(ctx, conv, keys); err != nil {
				return err
			}
			res.Conversation = conv
			res.Created = true
			return nil
		case 1:
			res.Conversation = found[0]
		default:
			survivor, merged, err := mergeConversations(ctx, tx, found)
			if err != nil {
				return err
			}
			res.Conversation = survivor
			res.MergedIDs = merged
		}

		conv := res.Conversation
		changed := applyIdentity(conv, ident, in.PushName)
		if err := tx.AddAliases(ctx, conv, keys); err != nil {
			return err
		}
		if changed {
			return tx.UpdateConversation(ctx, conv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(res.MergedIDs) > 0 {
		// contadores agregados por MergeInto
		if fresh, err := r.repo.GetConversation(ctx, in.TenantID, res.Conversation.ID); err == nil {
			res.Conversation = fresh
		}
	}
	return res, nil
}

func (r *Resolver) announce(tenantID string, res *ResolveResult) {
	conv := res.Conversation
	fields := logrus.Fields{"tenant": tenantID, "conversation": conv.ID, "remote": conv.RemoteJID}
	switch {
	case res.Created:
		logrus.WithFields(fields).Info("[RESOLVER] Conversation created")
		r.notifier.Notify(tenantID, EventConversationCreated, conv)
	case len(res.MergedIDs) > 0:
		logrus.WithFields(fields).Infof("[RESOLVER] Merged %d duplicate conversation(s): %s", len(res.MergedIDs), strings.Join(res.MergedIDs, ","))
		r.notifier.Notify(tenantID, EventConversationMerged, map[string]any{"survivor": conv, "merged_ids": res.MergedIDs})
	}
}

func resolveLockKey(tenantID, sessionID string) string {
	return "resolve:" + tenantID + ":" + sessionID
}

func newConversation(in ResolveInput, ident identity) *domain.Conversation {
	conv := &domain.Conversation{
		TenantID:     in.TenantID,
		SessionID:    in.SessionID,
		RemoteJID:    ident.primary.String(),
		Phone:        ident.phone,
		LID:          ident.lidJID(),
		IsGroup:      ident.primary.Kind == jid.KindGroup,
		Status:       domain.ConversationOpen,
		AgentEnabled: true,
	}
	if !conv.IsGroup {
		conv.ContactName = cleanName(in.PushName)
	}
	return conv
}

// applyIdentity completa datos faltantes sin reemplazar los ya conocidos.
func applyIdentity(conv *domain.Conversation, ident identity, pushName string) bool {
	changed := false
	if conv.RemoteJID == "" {
		conv.RemoteJID = ident.primary.String()
		changed = true
	}
	if conv.Phone == "" && ident.phone != "" {
		conv.Phone = ident.phone
		changed = true
	}
	if conv.LID == "" && ident.lid != "" {
		conv.LID = ident.lidJID()
		changed = true
	}
	if name := cleanName(pushName); !conv.IsGroup && name != "" && name != conv.ContactName &&
		(conv.ContactName == "" || looksLikePhone(conv.ContactName)) {
		conv.ContactName = name
		changed = true
	}
	return changed
}
