package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/urbancab/service-booking/internal/application"
	"github.com/urbancab/service-booking/internal/auth"
	"github.com/urbancab/service-booking/internal/handler/response"
)

// DriverHandler handles HTTP requests for driver profiles.
type DriverHandler struct {
	service *application.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(service *application.DriverService) *DriverHandler {
	return &DriverHandler{service: service}
}

// RegisterRoutes registers driver routes on the given router group.
func (h *DriverHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	drivers := r.Group("/api/v1/drivers")
	drivers.Use(auth.Middleware(jwtManager))
	{
		drivers.POST("", auth.RequireRole(auth.RoleDriver), h.RegisterDriver)
		drivers.GET("/:id", h.GetDriver)
		drivers.GET("/available", auth.RequireRole(auth.RoleAdmin), h.ListAvailable)
		drivers.PUT("/me/availability", auth.RequireRole(auth.RoleDriver), h.SetAvailability)
		drivers.POST("/:id/verify", auth.RequireRole(auth.RoleAdmin), h.VerifyDriver)
	}
}

// RegisterDriver handles POST /api/v1/drivers.
func (h *DriverHandler) RegisterDriver(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RegisterDriver(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetDriver handles GET /api/v1/drivers/:id.
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid driver ID")
		return
	}

	result, err := h.service.GetDriver(c.Request.Context(), driverID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListAvailable handles GET /api/v1/drivers/available?vehicle_type=SEDAN.
func (h *DriverHandler) ListAvailable(c *gin.Context) {
	vehicleType := c.Query("vehicle_type")
	if vehicleType == "" {
		response.BadRequest(c, "vehicle_type query parameter is required")
		return
	}

	result, err := h.service.ListAvailableDrivers(c.Request.Context(), vehicleType)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetAvailability handles PUT /api/v1/drivers/me/availability.
func (h *DriverHandler) SetAvailability(c *gin.Context) {
	driverID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetAvailability(c.Request.Context(), driverID, req.Available)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// VerifyDriver handles POST /api/v1/drivers/:id/verify (admin).
func (h *DriverHandler) VerifyDriver(c *gin.Context) {
	driverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid driver ID")
		return
	}

	result, err := h.service.VerifyDriver(c.Request.Context(), driverID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
