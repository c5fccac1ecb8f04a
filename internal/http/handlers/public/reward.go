package public

import (
	"strings"

	"github.com/parcelpal/internal/http/response"

	"github.com/gin-gonic/gin"
)

const redemptionHistoryLimit = 50

// RedeemRequest catalog reward id
type RedeemRequest struct {
	RewardID string `json:"reward_id" binding:"required"`
}

// ListRewards catalog, earn rules and the caller's recent redemptions
func (h *Handler) ListRewards(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	history, err := h.RewardService.History(uid, redemptionHistoryLimit)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"catalog":     h.RewardService.Catalog(),
		"earn_rules":  h.RewardService.EarnRules(),
		"redemptions": history,
	})
}

// RedeemReward spends points on a catalog reward
func (h *Handler) RedeemReward(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	redemption, err := h.RewardService.Redeem(c.Request.Context(), uid, strings.TrimSpace(req.RewardID))
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(rewardErrorRules, commonErrorRules), response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, redemption)
}
