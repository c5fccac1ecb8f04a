package public

import (
	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/models"

	"github.com/gin-gonic/gin"
)

const defaultMessagePageSize = 200

// SendMessageRequest chat message
type SendMessageRequest struct {
	Content string `json:"content"`
}

// PinAmountRequest amount proposal
type PinAmountRequest struct {
	Amount models.Money `json:"amount"`
}

// GetDeliveryChat chat of a delivery; 404 until the delivery is accepted
func (h *Handler) GetDeliveryChat(c *gin.Context) {
	uid, id, ok := h.deliveryTarget(c)
	if !ok {
		return
	}
	chat, err := h.ChatService.GetByDelivery(uid, id)
	if err != nil {
		respondWithMappedError(c, err, chatHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, chat)
}

// GetChat chat by id
func (h *Handler) GetChat(c *gin.Context) {
	uid, id, ok := h.chatTarget(c)
	if !ok {
		return
	}
	chat, err := h.ChatService.Get(uid, id)
	if err != nil {
		respondWithMappedError(c, err, chatHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, chat)
}

// ListMessages oldest first; ?after_id returns only newer messages
func (h *Handler) ListMessages(c *gin.Context) {
	uid, id, ok := h.chatTarget(c)
	if !ok {
		return
	}
	afterID := queryInt(c, "after_id", 0)
	if afterID < 0 {
		afterID = 0
	}
	limit := queryInt(c, "limit", defaultMessagePageSize)
	messages, err := h.ChatService.ListMessages(uid, id, uint(afterID), limit)
	if err != nil {
		respondWithMappedError(c, err, chatHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, messages)
}

// SendMessage appends a message
func (h *Handler) SendMessage(c *gin.Context) {
	uid, id, ok := h.chatTarget(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	message, err := h.ChatService.Send(c.Request.Context(), uid, id, req.Content)
	if err != nil {
		respondWithMappedError(c, err, chatHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, message)
}

// PinAmount proposes an amount
func (h *Handler) PinAmount(c *gin.Context) {
	uid, id, ok := h.chatTarget(c)
	if !ok {
		return
	}
	var req PinAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.amount_invalid", err)
		return
	}
	chat, err := h.ChatService.Pin(c.Request.Context(), uid, id, req.Amount)
	if err != nil {
		respondWithMappedError(c, err, chatHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, chat)
}

// ConfirmAmount counter-party accepts the pinned amount
func (h *Handler) ConfirmAmount(c *gin.Context) {
	uid, id, ok := h.chatTarget(c)
	if !ok {
		return
	}
	chat, err := h.ChatService.Confirm(c.Request.Context(), uid, id)
	if err != nil {
		respondWithMappedError(c, err, chatHandlerErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, chat)
}

func (h *Handler) chatTarget(c *gin.Context) (uint, uint, bool) {
	return h.deliveryTarget(c)
}
