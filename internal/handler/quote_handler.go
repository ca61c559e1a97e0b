package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/urbancab/service-booking/internal/application"
	"github.com/urbancab/service-booking/internal/auth"
	"github.com/urbancab/service-booking/internal/handler/response"
)

// QuoteHandler handles HTTP requests for fare quotes.
type QuoteHandler struct {
	service *application.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(service *application.QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// RegisterRoutes registers quote routes on the given router group.
func (h *QuoteHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	quotes := r.Group("/api/v1/quotes")
	quotes.Use(auth.Middleware(jwtManager))
	{
		quotes.POST("", h.GetQuote)
		quotes.POST("/search", h.GetSearchQuote)
	}
}

// GetQuote handles POST /api/v1/quotes. Resolution failures surface as
// errors the caller can act on.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	var req application.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.GetQuote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetSearchQuote handles POST /api/v1/quotes/search: best-effort pricing for
// search listings, substituting a fallback distance when providers fail.
func (h *QuoteHandler) GetSearchQuote(c *gin.Context) {
	var req application.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.GetSearchQuote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
