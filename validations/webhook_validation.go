package validations

import (
	"context"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateWebhookEnvelope revisa los campos mínimos de un evento del proveedor.
func ValidateWebhookEnvelope(ctx context.Context, event, session string) error {
	err := validation.Errors{
		"event":   validation.ValidateWithContext(ctx, event, validation.Required, validation.Length(1, 64)),
		"session": validation.ValidateWithContext(ctx, session, validation.Required, validation.Length(1, 128)),
	}.Filter()
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
