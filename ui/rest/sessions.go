package rest

import (
	agentDomain "github.com/AzielCF/az-crm/agent/domain"
	convDomain "github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/AzielCF/az-crm/validations"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Session struct {
	Sessions SessionUsecase
	Agents   AgentUsecase
	Merger   DuplicateMerger
}

func InitRestSession(app fiber.Router, sessions SessionUsecase, agents AgentUsecase, merger DuplicateMerger) Session {
	handler := Session{Sessions: sessions, Agents: agents, Merger: merger}

	group := app.Group("/sessions")
	group.Get("/", handler.List)
	group.Post("/", handler.Register)
	group.Get("/:session", handler.Get)
	group.Get("/:session/agent", handler.GetAgent)
	group.Put("/:session/agent", handler.UpsertAgent)
	group.Delete("/:session/agent", handler.DeleteAgent)
	group.Post("/:session/conversations/merge-duplicates", handler.MergeDuplicates)

	return handler
}

func (h *Session) List(c *fiber.Ctx) error {
	sessions, err := h.Sessions.List(c.UserContext(), middleware.TenantID(c))
	if err != nil {
		return err
	}
	return success(c, "Sessions retrieved", sessions)
}

func (h *Session) Register(c *fiber.Ctx) error {
	var req convDomain.RegisterSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return pkgError.ValidationError("invalid request body: " + err.Error())
	}
	if err := validations.ValidateRegisterSession(c.UserContext(), req); err != nil {
		return err
	}
	session, err := h.Sessions.Register(c.UserContext(), middleware.TenantID(c), req.ID, req.Name)
	if err != nil {
		return err
	}
	return created(c, "Session registered", session)
}

func (h *Session) Get(c *fiber.Ctx) error {
	session, err := h.Sessions.GetForTenant(c.UserContext(), middleware.TenantID(c), c.Params("session"))
	if err != nil {
		return err
	}
	return success(c, "Session retrieved", session)
}

func (h *Session) GetAgent(c *fiber.Ctx) error {
	tenantID := middleware.TenantID(c)
	if _, err := h.Sessions.GetForTenant(c.UserContext(), tenantID, c.Params("session")); err != nil {
		return err
	}
	agent, err := h.Agents.Get(c.UserContext(), tenantID, c.Params("session"))
	if err != nil {
		return err
	}
	return success(c, "Agent retrieved", agent)
}

func (h *Session) UpsertAgent(c *fiber.Ctx) error {
	tenantID := middleware.TenantID(c)
	if _, err := h.Sessions.GetForTenant(c.UserContext(), tenantID, c.Params("session")); err != nil {
		return err
	}
	var req agentDomain.UpdateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return pkgError.ValidationError("invalid request body: " + err.Error())
	}
	agent, err := h.Agents.Upsert(c.UserContext(), tenantID, c.Params("session"), req)
	if err != nil {
		return err
	}
	return success(c, "Agent saved", agent)
}

func (h *Session) DeleteAgent(c *fiber.Ctx) error {
	tenantID := middleware.TenantID(c)
	if _, err := h.Sessions.GetForTenant(c.UserContext(), tenantID, c.Params("session")); err != nil {
		return err
	}
	if err := h.Agents.Delete(c.UserContext(), tenantID, c.Params("session")); err != nil {
		return err
	}
	return success(c, "Agent deleted", nil)
}

// MergeDuplicates ejecuta el barrido administrativo de conversaciones duplicadas de la sesión.
func (h *Session) MergeDuplicates(c *fiber.Ctx) error {
	tenantID := middleware.TenantID(c)
	sessionID := c.Params("session")
	if _, err := h.Sessions.GetForTenant(c.UserContext(), tenantID, sessionID); err != nil {
		return err
	}
	groups, err := h.Merger.MergeDuplicates(c.UserContext(), tenantID, sessionID)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"tenant": tenantID, "session": sessionID, "groups": len(groups)}).
		Info("[REST] Duplicate sweep finished")
	return success(c, "Duplicate conversations merged", groups)
}
