package knowledgebase

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/generation"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/webinars"
	"github.com/aura-webinar/studio/internal/workspace"
	"github.com/aura-webinar/studio/pkg/response"
)

// Details persists the topics, product and bonuses of a webinar.
type Details interface {
	Topics(ctx context.Context, webinarID uuid.UUID) ([]models.Topic, error)
	ReorderTopics(ctx context.Context, webinarID uuid.UUID, ids []uuid.UUID) ([]models.Topic, error)
	Product(ctx context.Context, webinarID uuid.UUID) (*models.Product, error)
	PutProduct(ctx context.Context, webinarID uuid.UUID, p *models.Product) (*models.Product, error)
	AddBonus(ctx context.Context, webinarID uuid.UUID, b models.Bonus) (*models.Bonus, error)
}

// DescribeTopicRequest is the body for POST /webinars/:id/topics/describe.
type DescribeTopicRequest struct {
	Name        string `json:"name"`
	Index       int    `json:"index"`
	Description string `json:"description"` // defaults to the webinar description
}

// TopicOrderRequest is the body for PUT /webinars/:id/topics/order.
type TopicOrderRequest struct {
	TopicIDs []uuid.UUID `json:"topic_ids" binding:"required"`
}

// BonusRequest is one bonus in a product request.
type BonusRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       string `json:"value"`
}

// Validate requires a name.
func (b BonusRequest) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.Required.Error("Please enter a bonus name")),
	)
}

// ProductRequest is the body for PUT /webinars/:id/product.
type ProductRequest struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	RegularPrice string         `json:"regular_price"`
	SpecialPrice string         `json:"special_price"`
	Bonuses      []BonusRequest `json:"bonuses"`
}

// Validate requires a name and valid bonuses.
func (p ProductRequest) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required.Error("Please enter a product name")),
		validation.Field(&p.Bonuses),
	)
}

// Handler serves knowledge base endpoints.
type Handler struct {
	svc     *Service
	kbs     Store
	details Details
	logger  *zap.Logger
}

// NewHandler creates a knowledge base handler.
func NewHandler(svc *Service, kbs Store, details Details, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, kbs: kbs, details: details, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, workspace.ErrBusy) {
		response.Conflict(c, err.Error())
		return
	}
	status, msg := generation.HTTPStatus(err)
	if status >= 500 {
		h.logger.Error("knowledge base request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, response.Body{Success: false, Error: msg})
}

// Generate handles POST /webinars/:id/knowledge-base/generate.
func (h *Handler) Generate(c *gin.Context) {
	var data models.WebinarData
	if err := c.ShouldBindJSON(&data); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	kb, err := h.svc.Generate(c.Request.Context(), webinars.FromContext(c), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, kb)
}

// Get handles GET /webinars/:id/knowledge-base.
func (h *Handler) Get(c *gin.Context) {
	kb, err := h.kbs.Get(c.Request.Context(), webinars.FromContext(c).ID)
	if err != nil {
		response.Internal(c, "failed to load knowledge base")
		return
	}
	if kb == nil {
		response.NotFound(c, ErrNoKnowledgeBase.Error())
		return
	}
	response.OK(c, kb)
}

// Patch handles PATCH /webinars/:id/knowledge-base.
func (h *Handler) Patch(c *gin.Context) {
	var patch models.KnowledgeBasePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	kb, err := h.svc.Patch(c.Request.Context(), webinars.FromContext(c), patch)
	switch {
	case errors.Is(err, ErrNoKnowledgeBase):
		response.NotFound(c, err.Error())
		return
	case errors.Is(err, workspace.ErrBusy):
		response.Conflict(c, err.Error())
		return
	case err != nil:
		h.logger.Error("patch knowledge base", zap.Error(err))
		response.Internal(c, "failed to save knowledge base")
		return
	}
	response.OK(c, kb)
}

// DescribeTopic handles POST /webinars/:id/topics/describe.
func (h *Handler) DescribeTopic(c *gin.Context) {
	var req DescribeTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	desc := req.Description
	if strings.TrimSpace(desc) == "" {
		desc = webinars.FromContext(c).Description
	}
	text, err := h.svc.DescribeTopic(c.Request.Context(), req.Name, req.Index, desc)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"description": text})
}

// Topics handles GET /webinars/:id/topics.
func (h *Handler) Topics(c *gin.Context) {
	list, err := h.details.Topics(c.Request.Context(), webinars.FromContext(c).ID)
	if err != nil {
		response.Internal(c, "failed to list topics")
		return
	}
	response.OK(c, list)
}

// ReorderTopics handles PUT /webinars/:id/topics/order.
func (h *Handler) ReorderTopics(c *gin.Context) {
	var req TopicOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	list, err := h.details.ReorderTopics(c.Request.Context(), webinars.FromContext(c).ID, req.TopicIDs)
	if errors.Is(err, ErrTopicOrder) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to reorder topics")
		return
	}
	response.OK(c, list)
}

// Product handles GET /webinars/:id/product.
func (h *Handler) Product(c *gin.Context) {
	p, err := h.details.Product(c.Request.Context(), webinars.FromContext(c).ID)
	if err != nil {
		response.Internal(c, "failed to load product")
		return
	}
	if p == nil {
		response.NotFound(c, "product not found")
		return
	}
	response.OK(c, p)
}

// PutProduct handles PUT /webinars/:id/product.
func (h *Handler) PutProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p := &models.Product{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		RegularPrice: req.RegularPrice,
		SpecialPrice: req.SpecialPrice,
	}
	for _, b := range req.Bonuses {
		p.Bonuses = append(p.Bonuses, models.Bonus{Name: strings.TrimSpace(b.Name), Description: b.Description, Value: b.Value})
	}
	saved, err := h.details.PutProduct(c.Request.Context(), webinars.FromContext(c).ID, p)
	if err != nil {
		response.Internal(c, "failed to save product")
		return
	}
	response.OK(c, saved)
}

// DeleteProduct handles DELETE /webinars/:id/product. Bonuses go with it.
func (h *Handler) DeleteProduct(c *gin.Context) {
	if _, err := h.details.PutProduct(c.Request.Context(), webinars.FromContext(c).ID, nil); err != nil {
		response.Internal(c, "failed to delete product")
		return
	}
	response.NoContent(c)
}

// AddBonus handles POST /webinars/:id/product/bonuses.
func (h *Handler) AddBonus(c *gin.Context) {
	var req BonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	b, err := h.details.AddBonus(c.Request.Context(), webinars.FromContext(c).ID,
		models.Bonus{Name: strings.TrimSpace(req.Name), Description: req.Description, Value: req.Value})
	if errors.Is(err, ErrNoProduct) {
		response.Conflict(c, "Please add a product before adding bonuses")
		return
	}
	if err != nil {
		response.Internal(c, "failed to add bonus")
		return
	}
	response.Created(c, b)
}
