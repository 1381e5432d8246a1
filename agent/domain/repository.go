package domain

import "context"

type Repository interface {
	GetAgent(ctx context.Context, tenantID, sessionID string) (*Agent, error)
	// SaveAgent crea o actualiza el agente de la sesión.
	SaveAgent(ctx context.Context, a *Agent) error
	DeleteAgent(ctx context.Context, tenantID, sessionID string) error

	SaveDispatchLog(ctx context.Context, l *DispatchLog) error
	// ListDispatchLogs devuelve los registros más recientes primero.
	ListDispatchLogs(ctx context.Context, tenantID string, conversationIDs []string, limit int) ([]*DispatchLog, error)
}
