package validations

import (
	"context"

	"github.com/AzielCF/az-crm/core/settings/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateAgentDefaults usa los mismos rangos que la configuración de un agente.
func ValidateAgentDefaults(ctx context.Context, request domain.AgentDefaults) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Model, validation.Length(0, 100)),
		validation.Field(&request.SystemPrompt, validation.Length(0, 20000)),
		validation.Field(&request.DebounceMs, validation.Min(0), validation.Max(60000)),
		validation.Field(&request.WaitContactIdleMs, validation.Min(0), validation.Max(120000)),
		validation.Field(&request.MinReplyIntervalMs, validation.Min(0), validation.Max(3600000)),
		validation.Field(&request.MaxRepliesPerHour, validation.Min(0), validation.Max(3600)),
		validation.Field(&request.TakeoverCooldownMinutes, validation.Min(0), validation.Max(10080)),
		validation.Field(&request.HistoryLimit, validation.Min(0), validation.Max(200)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
