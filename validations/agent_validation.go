package validations

import (
	"context"
	"errors"

	"github.com/AzielCF/az-crm/agent/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidateUpdateAgent(ctx context.Context, request domain.UpdateAgentRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Provider, validation.NilOrNotEmpty, validation.By(knownProvider)),
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

func knownProvider(value any) error {
	p, _ := value.(*string)
	if p == nil {
		return nil
	}
	if _, ok := domain.ParseProvider(*p); !ok {
		return errors.New("must be openai or gemini")
	}
	return nil
}
