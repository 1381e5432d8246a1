package rest

import (
	"strings"
	"time"

	convDomain "github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/AzielCF/az-crm/validations"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultMessagesLimit   = 50
	maxMessagesLimit       = 500
	defaultDispatchesLimit = 50
)

type Conversation struct {
	Conversations ConversationUsecase
	Agents        AgentUsecase
}

func InitRestConversation(app fiber.Router, conversations ConversationUsecase, agents AgentUsecase) Conversation {
	handler := Conversation{Conversations: conversations, Agents: agents}

	group := app.Group("/conversations")
	group.Get("/", handler.List)
	group.Get("/:id", handler.Get)
	group.Get("/:id/messages", handler.Messages)
	group.Get("/:id/dispatches", handler.Dispatches)
	group.Post("/:id/takeover", handler.Takeover)
	group.Post("/:id/release", handler.Release)
	group.Put("/:id/agent", handler.ToggleAgent)
	group.Put("/:id/status", handler.SetStatus)

	return handler
}

func (h *Conversation) List(c *fiber.Ctx) error {
	filter := convDomain.ConversationFilter{
		SessionID: strings.TrimSpace(c.Query("session")),
		Status:    convDomain.ConversationStatus(strings.TrimSpace(c.Query("status"))),
		Search:    strings.TrimSpace(c.Query("search")),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}
	if err := validations.ValidateConversationFilter(c.UserContext(), filter); err != nil {
		return err
	}
	convs, err := h.Conversations.List(c.UserContext(), middleware.TenantID(c), filter)
	if err != nil {
		return err
	}
	return success(c, "Conversations retrieved", convs)
}

func (h *Conversation) Get(c *fiber.Ctx) error {
	tenantID := middleware.TenantID(c)
	conv, err := h.Conversations.Get(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return err
	}
	aliases, err := h.Conversations.Aliases(c.UserContext(), tenantID, conv.ID)
	if err != nil {
		return err
	}
	return success(c, "Conversation retrieved", ConversationDetail{Conversation: conv, Aliases: aliases})
}

func (h *Conversation) Messages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultMessagesLimit)
	if limit <= 0 || limit > maxMessagesLimit {
		return pkgError.ValidationError("limit must be between 1 and 500")
	}
	var before *time.Time
	if raw := strings.TrimSpace(c.Query("before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return pkgError.ValidationError("before must be an RFC3339 timestamp")
		}
		before = &ts
	}
	msgs, err := h.Conversations.Messages(c.UserContext(), middleware.TenantID(c), c.Params("id"), limit, before)
	if err != nil {
		return err
	}
	return success(c, "Messages retrieved", msgs)
}

// Dispatches incluye los registros escritos bajo conversaciones que luego fueron fusionadas.
func (h *Conversation) Dispatches(c *fiber.Ctx) error {
	tenantID := middleware.TenantID(c)
	_, ids, err := h.Conversations.Lineage(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return err
	}
	logs, err := h.Agents.Dispatches(c.UserContext(), tenantID, ids, c.QueryInt("limit", defaultDispatchesLimit))
	if err != nil {
		return err
	}
	return success(c, "Dispatch outcomes retrieved", logs)
}

func (h *Conversation) Takeover(c *fiber.Ctx) error {
	var req convDomain.TakeoverRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return pkgError.ValidationError("invalid request body: " + err.Error())
		}
	}
	if err := validations.ValidateTakeover(c.UserContext(), req); err != nil {
		return err
	}
	conv, err := h.Conversations.Takeover(c.UserContext(), middleware.TenantID(c), c.Params("id"), strings.TrimSpace(req.UserID))
	if err != nil {
		return err
	}
	return success(c, "Conversation taken over", conv)
}

func (h *Conversation) Release(c *fiber.Ctx) error {
	conv, err := h.Conversations.Release(c.UserContext(), middleware.TenantID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return success(c, "Conversation released to the agent", conv)
}

func (h *Conversation) ToggleAgent(c *fiber.Ctx) error {
	var req convDomain.AgentToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return pkgError.ValidationError("invalid request body: " + err.Error())
	}
	if err := validations.ValidateAgentToggle(c.UserContext(), req); err != nil {
		return err
	}
	conv, err := h.Conversations.SetAgentEnabled(c.UserContext(), middleware.TenantID(c), c.Params("id"), *req.Enabled)
	if err != nil {
		return err
	}
	return success(c, "Agent toggle updated", conv)
}

func (h *Conversation) SetStatus(c *fiber.Ctx) error {
	var req convDomain.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return pkgError.ValidationError("invalid request body: " + err.Error())
	}
	conv, err := h.Conversations.SetStatus(c.UserContext(), middleware.TenantID(c), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return success(c, "Conversation status updated", conv)
}
