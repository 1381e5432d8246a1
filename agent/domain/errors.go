package domain

import "errors"

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrNoAPIKey      = errors.New("no api key configured for provider")
	// ErrSuperseded cancela una generación en curso cuando llega otro mensaje del contacto.
	ErrSuperseded = errors.New("superseded by a newer message")
)
