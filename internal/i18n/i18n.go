package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultLocale fallback locale
const DefaultLocale = "en"

var catalogs = map[string]map[string]string{
	"en": english,
}

// ResolveLocale picks the locale from ?lang= then Accept-Language
func ResolveLocale(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return DefaultLocale
	}
	if lang := normalize(c.Query("lang")); lang != "" {
		return lang
	}
	header := c.GetHeader("Accept-Language")
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if lang := normalize(tag); lang != "" {
			return lang
		}
	}
	return DefaultLocale
}

func normalize(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return ""
	}
	base := strings.SplitN(strings.ReplaceAll(tag, "_", "-"), "-", 2)[0]
	if _, ok := catalogs[base]; ok {
		return base
	}
	return ""
}

// T translates key; unknown keys come back unchanged
func T(locale, key string) string {
	if catalog, ok := catalogs[locale]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if msg, ok := catalogs[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Sprintf translates key and formats it with args
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}
