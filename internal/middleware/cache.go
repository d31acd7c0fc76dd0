package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

// responseMeta collects envelope metadata while a handler runs.
type responseMeta struct {
	start    time.Time
	cacheHit *bool
}

// WithResponseMeta starts the per-request metadata used by cached read endpoints.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now()})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from the summary cache.
func SetCacheHit(c *gin.Context, hit bool) {
	metaFor(c).cacheHit = &hit
}

// ExtractMeta renders the collected metadata for the response envelope.
// The processing time covers the request up to the call.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := metaFor(c)
	out := map[string]interface{}{
		"processing_time_ms": time.Since(meta.start).Milliseconds(),
	}
	if meta.cacheHit != nil {
		out["cache_hit"] = *meta.cacheHit
	}
	return out
}

func metaFor(c *gin.Context) *responseMeta {
	if value, ok := c.Get(responseMetaKey); ok {
		if meta, ok := value.(*responseMeta); ok {
			return meta
		}
	}
	meta := &responseMeta{start: time.Now()}
	c.Set(responseMetaKey, meta)
	return meta
}
