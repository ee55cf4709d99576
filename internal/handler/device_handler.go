// internal/handler/device_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-device-service/internal/service"
	"pos-device-service/internal/utils"
)

// DeviceHandler handles device-related HTTP requests
type DeviceHandler struct {
	deviceService *service.DeviceService
	logger        *utils.ServiceLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceService *service.DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		logger:        utils.NewServiceLogger(logger, "device-handler"),
	}
}

// RegisterRoutes registers device-related routes
func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	hw := router.Group("/hardware")
	{
		hw.GET("/status", h.Status)
		hw.POST("/resolve", h.ResolveStatus)
		hw.GET("/drivers", h.ListDrivers)

		roles := hw.Group("/roles/:role")
		{
			roles.POST("/connect", h.Connect)
			roles.POST("/disconnect", h.Disconnect)
			roles.POST("/reconnect", h.Reconnect)
			roles.POST("/inject", h.Inject)
		}
	}

	devices := router.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.POST("", h.SaveDevice)
		devices.PUT("/:id", h.UpdateDevice)
		devices.DELETE("/:id", h.DeleteDevice)
	}
}

// Status returns the worker state and every role's connection
// @Summary Hardware status
// @Description Get the worker state and the connection of every device role
// @Tags Hardware
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.HardwareStatus} "Hardware status retrieved"
// @Router /api/v1/hardware/status [get]
func (h *DeviceHandler) Status(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Hardware status retrieved", h.deviceService.Status())
}

// ResolveStatus clears a degraded status after an operator fixed the device
// @Summary Resolve status error
// @Description Leave the degraded state and resume status polling
// @Tags Hardware
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.HardwareStatus} "Status error resolved"
// @Router /api/v1/hardware/resolve [post]
func (h *DeviceHandler) ResolveStatus(c *gin.Context) {
	h.deviceService.ResolveStatusError()
	utils.SuccessResponse(c, http.StatusOK, "Status error resolved", h.deviceService.Status())
}

// ListDrivers lists the supported driver types
// @Summary List drivers
// @Description List the registered device driver types and their capabilities
// @Tags Hardware
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]driver.DriverInfo} "Drivers retrieved"
// @Router /api/v1/hardware/drivers [get]
func (h *DeviceHandler) ListDrivers(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Drivers retrieved", h.deviceService.Drivers())
}

// Connect connects the device of a role
// @Summary Connect role
// @Description Connect the device configured for a role
// @Tags Hardware
// @Produce json
// @Param role path string true "Device role" Enums(cash_receipt_printer, customer_order_printer, kitchen_printer, external_display, card_reader, electronic_scale, sales_data_controller, barcode_scanner)
// @Success 200 {object} utils.APIResponse{data=service.HardwareStatus} "Device connected"
// @Failure 400 {object} utils.APIResponse "Unknown role"
// @Failure 409 {object} utils.APIResponse "Device configuration conflict"
// @Failure 503 {object} utils.APIResponse "Device unavailable"
// @Router /api/v1/hardware/roles/{role}/connect [post]
func (h *DeviceHandler) Connect(c *gin.Context) {
	role := c.Param("role")
	if err := h.deviceService.Connect(c.Request.Context(), role); err != nil {
		respondError(c, h.logger, "Failed to connect device", err)
		return
	}

	h.logger.Info("Role connected", zap.String("role", role))
	utils.SuccessResponse(c, http.StatusOK, "Device connected", h.deviceService.Status())
}

// Disconnect releases the device of a role
// @Summary Disconnect role
// @Description Release the device of a role
// @Tags Hardware
// @Produce json
// @Param role path string true "Device role"
// @Success 200 {object} utils.APIResponse{data=service.HardwareStatus} "Device disconnected"
// @Failure 400 {object} utils.APIResponse "Unknown role"
// @Router /api/v1/hardware/roles/{role}/disconnect [post]
func (h *DeviceHandler) Disconnect(c *gin.Context) {
	role := c.Param("role")
	if err := h.deviceService.Disconnect(c.Request.Context(), role); err != nil {
		respondError(c, h.logger, "Failed to disconnect device", err)
		return
	}

	h.logger.Info("Role disconnected", zap.String("role", role))
	utils.SuccessResponse(c, http.StatusOK, "Device disconnected", h.deviceService.Status())
}

// Reconnect drops and reconnects the device of a role
// @Summary Reconnect role
// @Description Drop and reconnect the device of a role, releasing roles that share its port
// @Tags Hardware
// @Produce json
// @Param role path string true "Device role"
// @Success 200 {object} utils.APIResponse{data=service.HardwareStatus} "Device reconnected"
// @Failure 400 {object} utils.APIResponse "Unknown role"
// @Failure 503 {object} utils.APIResponse "Device unavailable"
// @Router /api/v1/hardware/roles/{role}/reconnect [post]
func (h *DeviceHandler) Reconnect(c *gin.Context) {
	role := c.Param("role")
	if err := h.deviceService.Reconnect(c.Request.Context(), role); err != nil {
		respondError(c, h.logger, "Failed to reconnect device", err)
		return
	}

	h.logger.Info("Role reconnected", zap.String("role", role))
	utils.SuccessResponse(c, http.StatusOK, "Device reconnected", h.deviceService.Status())
}

// Inject feeds input into a simulated device
// @Summary Inject input
// @Description Feed a card number, barcode or weight into a simulated input device
// @Tags Hardware
// @Accept json
// @Produce json
// @Param role path string true "Device role" Enums(card_reader, barcode_scanner, electronic_scale)
// @Param request body InjectRequest true "Injected value"
// @Success 202 {object} utils.APIResponse "Input injected"
// @Failure 400 {object} utils.APIResponse "Invalid request or device is not simulated"
// @Failure 409 {object} utils.APIResponse "Role not connected"
// @Router /api/v1/hardware/roles/{role}/inject [post]
func (h *DeviceHandler) Inject(c *gin.Context) {
	var req InjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.deviceService.Inject(c.Request.Context(), c.Param("role"), req.Value); err != nil {
		respondError(c, h.logger, "Failed to inject input", err)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Input injected", nil)
}

// ListDevices lists the configured devices
// @Summary List devices
// @Description List the configured devices
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{devices=[]model.Device,count=int}} "Devices retrieved successfully"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.deviceService.ListDevices(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to list devices", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved successfully", gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// SaveDevice creates a device
// @Summary Create device
// @Description Store a device configuration; connected roles of the device are released
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body service.SaveDeviceRequest true "Device configuration"
// @Success 201 {object} utils.APIResponse{data=model.Device} "Device saved successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Devices are read-only"
// @Router /api/v1/devices [post]
func (h *DeviceHandler) SaveDevice(c *gin.Context) {
	var req service.SaveDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	device, err := h.deviceService.SaveDevice(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to save device", err)
		return
	}

	h.logger.Info("Device saved", zap.String("device_id", device.ID.String()))
	utils.SuccessResponse(c, http.StatusCreated, "Device saved successfully", device)
}

// UpdateDevice replaces a device
// @Summary Update device
// @Description Replace a device configuration
// @Tags Devices
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body service.SaveDeviceRequest true "Device configuration"
// @Success 200 {object} utils.APIResponse{data=model.Device} "Device updated successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Devices are read-only"
// @Router /api/v1/devices/{id} [put]
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req service.SaveDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.ID = &id

	device, err := h.deviceService.SaveDevice(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to update device", err)
		return
	}

	h.logger.Info("Device updated", zap.String("device_id", device.ID.String()))
	utils.SuccessResponse(c, http.StatusOK, "Device updated successfully", device)
}

// DeleteDevice deletes a device
// @Summary Delete device
// @Description Delete a device configuration
// @Tags Devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse "Device deleted successfully"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 409 {object} utils.APIResponse "Devices are read-only"
// @Router /api/v1/devices/{id} [delete]
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.deviceService.DeleteDevice(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "Failed to delete device", err)
		return
	}

	h.logger.Info("Device deleted", zap.String("device_id", id.String()))
	utils.SuccessResponse(c, http.StatusOK, "Device deleted successfully", nil)
}

func (h *DeviceHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid device ID", err)
		return uuid.Nil, false
	}
	return id, true
}

// InjectRequest carries a simulated card, barcode or weight
type InjectRequest struct {
	Value string `json:"value" binding:"required"`
}
