package public

import (
	"strings"

	"github.com/parcelpal/internal/http/response"

	"github.com/gin-gonic/gin"
)

// UploadDeliveryImage multipart image + deliveryId + type (item|delivery)
func (h *Handler) UploadDeliveryImage(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	deliveryID, ok := formUint(c, "deliveryId")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.id_invalid", nil)
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.file_missing", nil)
		return
	}
	result, err := h.UploadService.UploadDeliveryPhoto(c.Request.Context(), uid, deliveryID, strings.TrimSpace(c.PostForm("type")), file)
	if err != nil {
		respondWithMappedError(c, err, uploadHandlerErrorRules, response.CodeInternal, "error.upload_failed")
		return
	}
	requestLog(c).Infow("delivery_photo_uploaded", "delivery_id", deliveryID, "type", c.PostForm("type"), "url", result.ImageURL)
	response.Success(c, result)
}
