package public

import (
	"errors"

	"github.com/parcelpal/internal/authz"
	"github.com/parcelpal/internal/geocoding"
	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError maps a service error to an envelope code and message key
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var commonErrorRules = []mappedHandlerError{
	{target: service.ErrNotFound, code: response.CodeNotFound, key: "error.not_found"},
	{target: service.ErrForbidden, code: response.CodeForbidden, key: "error.forbidden"},
	{target: service.ErrLocationInvalid, code: response.CodeBadRequest, key: "error.location_invalid"},
	{target: service.ErrQueueUnavailable, code: response.CodeInternal, key: "error.queue_unavailable"},
	{target: authz.ErrUnavailable, code: response.CodeInternal, key: "error.internal"},
}

var authErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidEmail, code: response.CodeBadRequest, key: "error.email_invalid"},
	{target: service.ErrPasswordTooShort, code: response.CodeBadRequest, key: "error.password_too_short"},
	{target: service.ErrEmailExists, code: response.CodeConflict, key: "error.email_exists"},
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, key: "error.login_failed"},
	{target: service.ErrInvalidToken, code: response.CodeUnauthorized, key: "error.token_invalid"},
	{target: service.ErrTokenRevoked, code: response.CodeUnauthorized, key: "error.token_revoked"},
}

var profileErrorRules = []mappedHandlerError{
	{target: service.ErrProfileExists, code: response.CodeConflict, key: "error.profile_exists"},
	{target: service.ErrProfileNotFound, code: response.CodeNotFound, key: "error.profile_not_found"},
	{target: service.ErrPhoneInvalid, code: response.CodeBadRequest, key: "error.phone_invalid"},
}

var deliveryErrorRules = []mappedHandlerError{
	{target: service.ErrDeliveryNotFound, code: response.CodeNotFound, key: "error.delivery_not_found"},
	{target: service.ErrDeliveryInvalid, code: response.CodeBadRequest, key: "error.delivery_invalid"},
	{target: service.ErrItemNameRequired, code: response.CodeBadRequest, key: "error.item_name_required"},
	{target: service.ErrPhoneInvalid, code: response.CodeBadRequest, key: "error.phone_invalid"},
	{target: service.ErrAmountInvalid, code: response.CodeBadRequest, key: "error.amount_invalid"},
	{target: service.ErrTimeLimitInvalid, code: response.CodeBadRequest, key: "error.time_limit_invalid"},
	{target: service.ErrDeliveryTaken, code: response.CodeConflict, key: "error.delivery_taken"},
	{target: service.ErrOwnDelivery, code: response.CodeBadRequest, key: "error.own_delivery"},
	{target: service.ErrInvalidTransition, code: response.CodeConflict, key: "error.invalid_transition"},
	{target: service.ErrCancelNotAllowed, code: response.CodeConflict, key: "error.cancel_not_allowed"},
	{target: service.ErrEmergencyRequired, code: response.CodeBadRequest, key: "error.emergency_required"},
	{target: service.ErrItemPhotoMissing, code: response.CodeBadRequest, key: "error.item_photo_missing"},
	{target: service.ErrDeliveryPhotoMissing, code: response.CodeBadRequest, key: "error.delivery_photo_missing"},
	{target: service.ErrRatingInvalid, code: response.CodeBadRequest, key: "error.rating_invalid"},
	{target: service.ErrAlreadyRated, code: response.CodeConflict, key: "error.already_rated"},
	{target: service.ErrPhotoTypeInvalid, code: response.CodeBadRequest, key: "error.photo_type_invalid"},
}

var chatErrorRules = []mappedHandlerError{
	{target: service.ErrChatNotFound, code: response.CodeNotFound, key: "error.chat_not_found"},
	{target: service.ErrMessageEmpty, code: response.CodeBadRequest, key: "error.message_empty"},
	{target: service.ErrMessageTooLong, code: response.CodeBadRequest, key: "error.message_too_long"},
	{target: service.ErrAmountInvalid, code: response.CodeBadRequest, key: "error.amount_invalid"},
	{target: service.ErrAmountConfirmed, code: response.CodeConflict, key: "error.amount_confirmed"},
	{target: service.ErrNoPin, code: response.CodeBadRequest, key: "error.no_pin"},
	{target: service.ErrPinnerCannotConfirm, code: response.CodeForbidden, key: "error.pinner_cannot_confirm"},
}

var rewardErrorRules = []mappedHandlerError{
	{target: service.ErrRewardNotFound, code: response.CodeNotFound, key: "error.reward_not_found"},
	{target: service.ErrInsufficientPoints, code: response.CodeBadRequest, key: "error.insufficient_points"},
	{target: service.ErrProfileNotFound, code: response.CodeNotFound, key: "error.profile_not_found"},
}

var uploadErrorRules = []mappedHandlerError{
	{target: service.ErrUploadTooLarge, code: response.CodeBadRequest, key: "error.file_too_large"},
	{target: service.ErrUploadTypeNotAllowed, code: response.CodeBadRequest, key: "error.file_type_not_allowed"},
	{target: service.ErrUploadTooWide, code: response.CodeBadRequest, key: "error.image_too_wide"},
}

var geocodingErrorRules = []mappedHandlerError{
	{target: geocoding.ErrDisabled, code: response.CodeUpstream, key: "error.geocoding_unavailable"},
	{target: geocoding.ErrRequestFailed, code: response.CodeUpstream, key: "error.geocoding_unavailable"},
	{target: geocoding.ErrResponseInvalid, code: response.CodeUpstream, key: "error.geocoding_unavailable"},
	{target: geocoding.ErrNotFound, code: response.CodeNotFound, key: "error.not_found"},
	{target: geocoding.ErrInvalidQuery, code: response.CodeBadRequest, key: "error.geocoding_query_required"},
}

var deliveryHandlerErrorRules = concatMappedHandlerErrors(deliveryErrorRules, commonErrorRules)
var uploadHandlerErrorRules = concatMappedHandlerErrors(uploadErrorRules, deliveryErrorRules, commonErrorRules)
var chatHandlerErrorRules = concatMappedHandlerErrors(chatErrorRules, commonErrorRules)
var profileHandlerErrorRules = concatMappedHandlerErrors(profileErrorRules, commonErrorRules)
