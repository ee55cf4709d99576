// internal/handler/sale_handler.go
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-device-service/internal/model"
	"pos-device-service/internal/service"
	"pos-device-service/internal/utils"
)

// SaleService is the part of service.SaleService the handler uses
type SaleService interface {
	Finalize(ctx context.Context, req *service.FinalizeRequest) (*service.FinalizeResult, error)
	GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	GetSaleByNumber(ctx context.Context, number int64) (*model.Sale, error)
}

// SaleHandler handles sale finalization requests
type SaleHandler struct {
	saleService SaleService
	logger      *utils.ServiceLogger
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(saleService SaleService, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{
		saleService: saleService,
		logger:      utils.NewServiceLogger(logger, "sale-handler"),
	}
}

// RegisterRoutes registers sale routes
func (h *SaleHandler) RegisterRoutes(router *gin.RouterGroup) {
	sales := router.Group("/sales")
	{
		sales.POST("/finalize", h.Finalize)
		sales.GET("/:ref", h.GetSale)
	}
}

// Finalize commits and prints a sale, order or document in one call
// @Summary Finalize sale
// @Description Commit an order, sale or document and print its receipts in one call. Printed receipts are annulled when a later step fails.
// @Tags Sales
// @Accept json
// @Produce json
// @Param request body service.FinalizeRequest true "Finalize request"
// @Success 200 {object} utils.APIResponse{data=service.FinalizeResult} "Finalize completed"
// @Failure 400 {object} utils.APIResponse "Invalid request or plan"
// @Failure 409 {object} utils.APIResponse "Receipt printer required or fiscal error"
// @Failure 503 {object} utils.APIResponse "Device unavailable"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /api/v1/sales/finalize [post]
func (h *SaleHandler) Finalize(c *gin.Context) {
	var req service.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.saleService.Finalize(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to finalize", err)
		return
	}

	fields := []zap.Field{zap.String("actions", result.Actions), zap.String("duration", result.Duration)}
	if result.Sale != nil {
		fields = append(fields, zap.Int64("sale_number", result.Sale.Number))
	}
	h.logger.Info("Finalize completed", fields...)
	utils.SuccessResponse(c, http.StatusOK, "Finalize completed", result)
}

// GetSale loads a sale by ID, or by number when ref is numeric
// @Summary Get sale
// @Description Load a committed sale by ID or by sale number
// @Tags Sales
// @Produce json
// @Param ref path string true "Sale ID or sale number"
// @Success 200 {object} utils.APIResponse{data=model.Sale} "Sale retrieved successfully"
// @Failure 400 {object} utils.APIResponse "Invalid sale reference"
// @Failure 404 {object} utils.APIResponse "Sale not found"
// @Router /api/v1/sales/{ref} [get]
func (h *SaleHandler) GetSale(c *gin.Context) {
	ref := c.Param("ref")

	var (
		sale *model.Sale
		err  error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		sale, err = h.saleService.GetSale(c.Request.Context(), id)
	} else if number, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil && number > 0 {
		sale, err = h.saleService.GetSaleByNumber(c.Request.Context(), number)
	} else {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid sale reference", parseErr)
		return
	}

	if err != nil {
		respondError(c, h.logger, "Failed to get sale", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Sale retrieved successfully", sale)
}
