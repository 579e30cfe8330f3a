package handler

import (
	"errors"
	"net/http"
	"strconv"

	"benefits_gateway/internal/domain/benefits/service"
	"benefits_gateway/internal/pkg/authority"
	"benefits_gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

type BenefitsHandler struct {
	service service.BenefitsService
}

func NewBenefitsHandler(service service.BenefitsService) *BenefitsHandler {
	return &BenefitsHandler{service: service}
}

// currentUserID 取出 AuthMiddleware 写入的 userID
func currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return "", false
	}
	uid, ok := userID.(string)
	if !ok || uid == "" {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Invalid user ID type")
		return "", false
	}
	return uid, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *BenefitsHandler) FavoritePromotion(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	promotionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.FavoritePromotion(c.Request.Context(), uid, promotionID); err != nil {
		response.Error(c, http.StatusBadGateway, response.ErrAuthorityFailed, err.Error())
		return
	}
	response.Success(c, nil)
}

func (h *BenefitsHandler) UnfavoritePromotion(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	promotionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.UnfavoritePromotion(c.Request.Context(), uid, promotionID); err != nil {
		response.Error(c, http.StatusBadGateway, response.ErrAuthorityFailed, err.Error())
		return
	}
	response.Success(c, nil)
}

func (h *BenefitsHandler) GetFavoritePromotions(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	promos, fromCache, err := h.service.GetFavoritePromotions(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	if fromCache {
		response.Degraded(c, promos)
		return
	}
	response.Success(c, promos)
}

func (h *BenefitsHandler) GetReservedPromotions(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	promos, fromCache, err := h.service.GetReservedPromotions(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	if fromCache {
		response.Degraded(c, promos)
		return
	}
	response.Success(c, promos)
}

type CreateBookingInput struct {
	PromotionID int64 `json:"promotionId" binding:"required,min=1"`
}

func (h *BenefitsHandler) CreateBooking(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var input CreateBookingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	booking, err := h.service.CreateBooking(c.Request.Context(), uid, input.PromotionID)
	if err != nil {
		response.Error(c, http.StatusBadGateway, response.ErrAuthorityFailed, err.Error())
		return
	}
	response.Success(c, booking)
}

func (h *BenefitsHandler) CancelBooking(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.service.CancelBooking(c.Request.Context(), uid, bookingID)
	if err != nil {
		response.Error(c, http.StatusBadGateway, response.ErrAuthorityFailed, err.Error())
		return
	}
	response.Success(c, booking)
}

type UpdateBookingInput struct {
	Status string `json:"status" binding:"required,oneof=pending used cancelled"`
}

func (h *BenefitsHandler) UpdateBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input UpdateBookingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	booking, err := h.service.UpdateBooking(c.Request.Context(), bookingID, input.Status)
	if err != nil {
		response.Error(c, http.StatusBadGateway, response.ErrAuthorityFailed, err.Error())
		return
	}
	response.Success(c, booking)
}

func (h *BenefitsHandler) GetUserBookings(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	bookings, fromCache, err := h.service.GetUserBookings(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	if fromCache {
		response.Degraded(c, bookings)
		return
	}
	response.Success(c, bookings)
}

func (h *BenefitsHandler) GetBookingByID(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.service.GetBookingByID(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, authority.ErrNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrBookingNotFound, "Booking not found")
			return
		}
		response.Error(c, http.StatusBadGateway, response.ErrAuthorityFailed, err.Error())
		return
	}
	response.Success(c, booking)
}

func (h *BenefitsHandler) ClearCache(c *gin.Context) {
	if err := h.service.ClearAllCache(c.Request.Context()); err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrCacheUnavailable, err.Error())
		return
	}
	response.Success(c, nil)
}

func (h *BenefitsHandler) GetCacheStats(c *gin.Context) {
	stats, err := h.service.GetCacheStats(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrCacheUnavailable, err.Error())
		return
	}
	response.Success(c, stats)
}
