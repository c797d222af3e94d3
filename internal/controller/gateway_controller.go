package controller

import (
	"errors"

	"ai-notetaking-editor/internal/dto"
	"ai-notetaking-editor/internal/pkg/serverutils"
	"ai-notetaking-editor/internal/service"
	"ai-notetaking-editor/pkg/gateway"

	"github.com/gofiber/fiber/v2"
)

type IGatewayController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	SaveContent(ctx *fiber.Ctx) error
	ShowDocument(ctx *fiber.Ctx) error
	ListAcceptedLinks(ctx *fiber.Ctx) error
	LinkSuggestions(ctx *fiber.Ctx) error
	GenerateTags(ctx *fiber.Ctx) error
	ListPages(ctx *fiber.Ctx) error
	CreatePage(ctx *fiber.Ctx) error
}

type gatewayController struct {
	workspaceService service.IWorkspaceService
}

func NewGatewayController(workspaceService service.IWorkspaceService) IGatewayController {
	return &gatewayController{
		workspaceService: workspaceService,
	}
}

func (c *gatewayController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	docs := r.Group("/documents")
	docs.Use(auth)
	docs.Put(":id/content", c.SaveContent)
	docs.Get(":id", c.ShowDocument)
	docs.Get(":id/links", c.ListAcceptedLinks)

	ai := r.Group("/ai")
	ai.Use(auth)
	ai.Post("link-suggestions", c.LinkSuggestions)
	ai.Post("tags", c.GenerateTags)

	ws := r.Group("/workspaces")
	ws.Use(auth)
	ws.Get(":workspace/pages", c.ListPages)
	ws.Post(":workspace/pages", c.CreatePage)
}

func (c *gatewayController) SaveContent(ctx *fiber.Ctx) error {
	var req dto.SaveContentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.workspaceService.SaveContent(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("Success save content", res))
}

func (c *gatewayController) ShowDocument(ctx *fiber.Ctx) error {
	res, err := c.workspaceService.ShowDocument(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show document", res))
}

func (c *gatewayController) ListAcceptedLinks(ctx *fiber.Ctx) error {
	res := c.workspaceService.ListAcceptedLinks(ctx.UserContext(), ctx.Params("id"))
	return ctx.JSON(serverutils.SuccessResponse("Success list accepted links", res))
}

func (c *gatewayController) LinkSuggestions(ctx *fiber.Ctx) error {
	var req gateway.LinkSuggestionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.workspaceService.SuggestLinks(ctx.UserContext(), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate link suggestions", res))
}

func (c *gatewayController) GenerateTags(ctx *fiber.Ctx) error {
	var req dto.GenerateTagsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.workspaceService.GenerateTags(ctx.UserContext(), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate tags", res))
}

func (c *gatewayController) ListPages(ctx *fiber.Ctx) error {
	res, err := c.workspaceService.ListPages(ctx.UserContext(), ctx.Params("workspace"))
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list pages", res))
}

func (c *gatewayController) CreatePage(ctx *fiber.Ctx) error {
	var req dto.CreatePageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.workspaceService.CreatePage(ctx.UserContext(), ctx.Params("workspace"), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create page", res))
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound), errors.Is(err, service.ErrWorkspaceNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
