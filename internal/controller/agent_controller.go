package controller

import (
	"ai-agent-gateway/internal/pkg/serverutils"
	"ai-agent-gateway/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAgentController interface {
	RegisterRoutes(r fiber.Router)
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
}

type agentController struct {
	service service.IAgentService
}

func NewAgentController(service service.IAgentService) IAgentController {
	return &agentController{service: service}
}

func (c *agentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/agents/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.GetAll)
	h.Get(":agentId", c.Show)
}

func (c *agentController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.service.ListAgents(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all agents", res))
}

func (c *agentController) Show(ctx *fiber.Ctx) error {
	agentId := ctx.Params("agentId")

	record, err := c.service.GetAgent(ctx.Context(), agentId)
	if err != nil {
		return err
	}
	if record == nil || !record.IsActive {
		return fiber.NewError(fiber.StatusNotFound, "agent not found")
	}

	res := map[string]interface{}{
		"agent_id":  record.AgentId,
		"name":      record.Name,
		"provider":  record.Provider,
		"model_id":  record.ModelId,
		"streaming": hasBehavior(record.Behaviors, "streaming"),
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get agent", res))
}

func hasBehavior(behaviors []string, tag string) bool {
	for _, b := range behaviors {
		if b == tag {
			return true
		}
	}
	return false
}
