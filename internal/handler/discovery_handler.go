// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-device-service/internal/service"
	"pos-device-service/internal/utils"
)

// DiscoveryHandler handles port discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discovery := router.Group("/discovery")
	{
		discovery.GET("/ports", h.ScanPorts)
		discovery.GET("/scanners", h.Scanners)
	}
}

// ScanPorts lists the ports a device can be assigned to
// @Summary Scan ports
// @Description List serial, USB and TCP ports a device can be assigned to
// @Tags Discovery
// @Produce json
// @Param type query string false "Scanner type" Enums(all, serial, usb, tcp) default(all)
// @Success 200 {object} utils.APIResponse "Port scan completed"
// @Failure 400 {object} utils.APIResponse "Unknown scanner type"
// @Router /api/v1/discovery/ports [get]
func (h *DiscoveryHandler) ScanPorts(c *gin.Context) {
	scanType := c.DefaultQuery("type", "all")

	ports, err := h.discoveryService.ScanPorts(c.Request.Context(), scanType)
	if err != nil {
		h.logger.Warn("Port scan rejected", zap.String("type", scanType), zap.Error(err))
		utils.ErrorResponse(c, http.StatusBadRequest, "Unknown scanner type", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", gin.H{
		"ports_found": len(ports),
		"ports":       ports,
	})
}

// Scanners lists the scanner types available on this machine
// @Summary List scanners
// @Description List the port scanner types available on this machine
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse "Scanners retrieved"
// @Router /api/v1/discovery/scanners [get]
func (h *DiscoveryHandler) Scanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", gin.H{
		"scanners": h.discoveryService.Scanners(),
	})
}
