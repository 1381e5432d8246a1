package validations

import (
	"context"
	"regexp"

	"github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func ValidateRegisterSession(ctx context.Context, request domain.RegisterSessionRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ID, validation.Required, validation.Length(1, 128), validation.Match(sessionIDPattern)),
		validation.Field(&request.Name, validation.Length(0, 120)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateConversationFilter(ctx context.Context, filter domain.ConversationFilter) error {
	err := validation.ValidateStructWithContext(ctx, &filter,
		validation.Field(&filter.Status, validation.In(domain.ConversationOpen, domain.ConversationClosed, domain.ConversationMerged)),
		validation.Field(&filter.Search, validation.Length(0, 100)),
		validation.Field(&filter.Limit, validation.Min(0), validation.Max(200)),
		validation.Field(&filter.Offset, validation.Min(0)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateTakeover(ctx context.Context, request domain.TakeoverRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.UserID, validation.Length(0, 128)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateAgentToggle(ctx context.Context, request domain.AgentToggleRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Enabled, validation.NotNil),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
