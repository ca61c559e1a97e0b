// Package response provides the JSON envelope helpers shared by all HTTP
// handlers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urbancab/service-booking/internal/domain"
)

// Envelope is the standard response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta carries pagination details for list responses.
type Meta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Success writes a 200 with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a 200 with the payload and pagination metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Meta:    &Meta{Total: total, Page: page, Limit: limit},
	})
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: message})
}

// Error maps a domain error to its HTTP status. Unknown errors become 500
// with a generic message so internals are not leaked.
func Error(c *gin.Context, err error) {
	if domainErr, ok := domain.AsError(err); ok {
		c.JSON(domainErr.HTTPStatus(), Envelope{Success: false, Error: domainErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, Envelope{Success: false, Error: "internal server error"})
}
