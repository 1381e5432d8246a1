package domain

type RegisterSessionRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TakeoverRequest struct {
	UserID string `json:"user_id"`
}

type AgentToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type StatusRequest struct {
	Status ConversationStatus `json:"status"`
}
