package domain

import "errors"

var (
	// ErrSessionNotFound se retorna cuando el webhook trae una sesión desconocida
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession se retorna al registrar una sesión que ya existe
	ErrDuplicateSession = errors.New("session already registered")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")

	// ErrDuplicateAlias indica que otro proceso creó la misma identidad en paralelo
	ErrDuplicateAlias = errors.New("conversation alias already exists")

	// ErrUnsupportedIdentifier se retorna para broadcasts, newsletters y servidores desconocidos
	ErrUnsupportedIdentifier = errors.New("identifier does not map to a conversation")

	ErrMissingProviderID = errors.New("provider message id is required")
)
