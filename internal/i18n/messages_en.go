package i18n

var english = map[string]string{
	// generic
	"error.bad_request":            "Invalid request",
	"error.unauthorized":           "Please sign in",
	"error.forbidden":              "You are not allowed to do that",
	"error.not_found":              "Not found",
	"error.internal":               "Something went wrong, please try again",
	"error.rate_limited":           "Too many requests, retry in %d seconds",
	"error.login_rate_limited":     "Too many sign-in attempts, retry in %d seconds",
	"error.rate_limit_unavailable": "Rate limiter unavailable",
	"error.user_id_invalid":        "Invalid user id",
	"error.user_id_type_invalid":   "Invalid user id type",
	"error.id_invalid":             "Invalid id",
	"error.queue_unavailable":      "Background queue unavailable",
	"error.location_invalid":       "Invalid location",

	// auth
	"error.auth_header_missing": "Missing Authorization header",
	"error.auth_header_invalid": "Authorization header must be Bearer <token>",
	"error.token_invalid":       "Session is invalid, please sign in again",
	"error.token_revoked":       "Session has ended, please sign in again",
	"error.jwt_secret_missing":  "Authentication is not configured",
	"error.email_invalid":       "Invalid email address",
	"error.password_too_short":  "Password must be at least 6 characters",
	"error.email_exists":        "Email is already registered",
	"error.login_failed":        "Incorrect email or password",
	"error.profile_exists":      "Profile already exists",
	"error.profile_not_found":   "Profile not found",

	// deliveries
	"error.delivery_not_found":       "Delivery not found",
	"error.delivery_invalid":         "Source and destination are required",
	"error.item_name_required":       "Item name is required",
	"error.phone_invalid":            "Phone number must have 10 digits",
	"error.amount_invalid":           "Amount must be greater than zero",
	"error.time_limit_invalid":       "Time limit must be greater than zero",
	"error.delivery_taken":           "This delivery was already accepted",
	"error.own_delivery":             "You cannot accept your own delivery",
	"error.invalid_transition":       "The delivery is not in a state that allows this",
	"error.cancel_not_allowed":       "This delivery can no longer be cancelled",
	"error.emergency_required":       "Only an emergency cancellation is possible after pickup",
	"error.item_photo_missing":       "Upload the item photo first",
	"error.delivery_photo_missing":   "Upload the delivery photo first",
	"error.rating_invalid":           "Rating must be between 1 and 5",
	"error.already_rated":            "This delivery was already rated",
	"error.photo_type_invalid":       "Photo type must be item or delivery",
	"error.geocoding_unavailable":    "Address lookup is unavailable",
	"error.geocoding_query_required": "Search text is required",

	// chat
	"error.chat_not_found":        "Chat is not available yet",
	"error.message_empty":         "Message cannot be empty",
	"error.message_too_long":      "Message is too long",
	"error.amount_confirmed":      "The amount is already confirmed",
	"error.no_pin":                "Pin an amount first",
	"error.pinner_cannot_confirm": "The other party must confirm the amount",

	// rewards
	"error.reward_not_found":    "Reward not found",
	"error.insufficient_points": "Not enough reward points",

	// uploads
	"error.file_missing":          "Image file is required",
	"error.file_too_large":        "Image is too large",
	"error.file_type_not_allowed": "Only jpg, png, webp and gif images are allowed",
	"error.image_too_wide":        "Image dimensions are too large",
	"error.upload_failed":         "Upload failed",
}
