package application

import (
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	convDomain "github.com/AzielCF/az-crm/conversation/domain"
)

// eligible: solo mensajes entrantes del contacto con texto (o media con pie de foto).
func eligible(msg *convDomain.Message) bool {
	if msg == nil || msg.FromMe || msg.Direction != convDomain.DirectionInbound || msg.Body == "" {
		return false
	}
	switch msg.Type {
	case convDomain.MessageText, convDomain.MessageImage, convDomain.MessageVideo, convDomain.MessageDocument:
		return true
	default:
		return false
	}
}

// gate evalúa agente activo, toggle de la conversación y toma humana, en ese orden.
// Devuelve "" cuando el agente puede responder.
func gate(agent *domain.Agent, conv *convDomain.Conversation, now time.Time) domain.Outcome {
	switch {
	case agent == nil || !agent.Active:
		return domain.OutcomeSkippedInactive
	case !conv.AgentEnabled:
		return domain.OutcomeSkippedDisabled
	case conv.TakeoverActive(now, agent.TakeoverCooldown()):
		return domain.OutcomeSkippedTakeover
	}
	return ""
}
