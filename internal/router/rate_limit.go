package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/i18n"
	"github.com/parcelpal/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc derives the bucket key for a request
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule fixed window rule
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	MessageKey    string
}

func (r RateLimitRule) disabled() bool {
	return r.WindowSeconds <= 0 || r.MaxRequests <= 0
}

// INCR + EXPIRE on first hit; returns {count, ttl}
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware shared fixed window in redis. When the script fails the
// request is counted by fallback instead, so a redis outage never locks users out.
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc, fallback *LocalRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.disabled() {
			c.Next()
			return
		}
		key := limitKey(c, rule, keyFunc)

		count, ttl, err := runRateLimitScript(c, client, key, rule.WindowSeconds)
		if err != nil {
			logger.Warnw("rate_limit_redis_failed", "key", key, "error", err)
			if fallback == nil || fallback.Allow(key) {
				c.Next()
				return
			}
			rejectLimited(c, rule, fallback.retryAfter())
			return
		}
		if count > int64(rule.MaxRequests) {
			rejectLimited(c, rule, int(ttl))
			return
		}
		c.Next()
	}
}

func runRateLimitScript(c *gin.Context, client *redis.Client, key string, window int) (int64, int64, error) {
	result, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, window).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit reply %T", result)
	}
	count, ok := toInt64(values[0])
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit count %T", values[0])
	}
	ttl, _ := toInt64(values[1])
	return count, ttl, nil
}

func limitKey(c *gin.Context, rule RateLimitRule, keyFunc RateLimitKeyFunc) string {
	key := ""
	if keyFunc != nil {
		key = strings.TrimSpace(keyFunc(c))
	}
	if key == "" {
		key = c.ClientIP()
	}
	if rule.Prefix != "" {
		key = fmt.Sprintf("%s:%s", rule.Prefix, key)
	}
	return key
}

// rejectLimited answers 429 with a localized wait hint and Retry-After
func rejectLimited(c *gin.Context, rule RateLimitRule, waitSeconds int) {
	if waitSeconds < 1 {
		waitSeconds = rule.WindowSeconds
	}
	if waitSeconds < 1 {
		waitSeconds = 1
	}
	msgKey := strings.TrimSpace(rule.MessageKey)
	if msgKey == "" {
		msgKey = "error.rate_limited"
	}
	c.Header("Retry-After", strconv.Itoa(waitSeconds))
	msg := i18n.Sprintf(i18n.ResolveLocale(c), msgKey, waitSeconds)
	response.Error(c, response.CodeTooManyRequests, msg)
	c.Abort()
}

// KeyByIP client ip
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByUser authenticated user id, client ip before authentication.
// Partners behind one carrier NAT poll nearby often, so per-user buckets keep them apart.
func KeyByUser(c *gin.Context) string {
	if raw, ok := c.Get("user_id"); ok {
		if id, ok := raw.(uint); ok && id != 0 {
			return "user:" + strconv.FormatUint(uint64(id), 10)
		}
	}
	return c.ClientIP()
}

// KeyByIPAndJSONField lower-cased JSON body field plus client ip
func KeyByIPAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.ToLower(strings.TrimSpace(readJSONField(c, field)))
		if value == "" {
			return c.ClientIP()
		}
		return fmt.Sprintf("%s|%s", value, c.ClientIP())
	}
}

// readJSONField peeks at one string field and restores the body for binding
func readJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var text string
	if err := json.Unmarshal(payload[field], &text); err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// toInt64 lua integers come back as int64 from go-redis
func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
