package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// HeaderCache reports whether a response was served from the cache.
const HeaderCache = "X-Cache"

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache keeps successful GET responses for a short ttl so polling station
// boards do not hit the database on every refresh. Entries are dropped early with
// Invalidate when the data behind them changes.
type ResponseCache struct {
	items *cache.Cache
	ttl   time.Duration
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{items: cache.New(ttl, 2*ttl), ttl: ttl}
}

// key ignores the order of query parameters: ?a=1&b=2 and ?b=2&a=1 share an entry.
func (rc *ResponseCache) key(r *http.Request) string {
	q := r.URL.Query()
	if len(q) == 0 {
		return r.URL.Path
	}
	return r.URL.Path + "?" + q.Encode()
}

// Invalidate drops every entry cached for path, whatever its query.
func (rc *ResponseCache) Invalidate(path string) int {
	n := 0
	for k := range rc.items.Items() {
		if k == path || strings.HasPrefix(k, path+"?") {
			rc.items.Delete(k)
			n++
		}
	}
	return n
}

// Handler serves repeated GET requests from the cache. Only 2xx responses are
// stored; a request sent with Cache-Control: no-cache skips the lookup and
// refreshes the entry. A cache without a positive ttl stores nothing.
func (rc *ResponseCache) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || rc.ttl <= 0 {
			c.Next()
			return
		}

		key := rc.key(c.Request)
		bypass := strings.Contains(c.GetHeader("Cache-Control"), "no-cache")
		if v, found := rc.items.Get(key); found && !bypass {
			cached := v.(cachedResponse)
			for k, vals := range cached.headers {
				c.Writer.Header()[k] = vals
			}
			c.Writer.Header().Set(HeaderCache, "HIT")
			c.Writer.WriteHeader(cached.status)
			_, _ = c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		c.Writer.Header().Set(HeaderCache, "MISS")
		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		if status := w.Status(); status >= 200 && status < 300 {
			headers := w.Header().Clone()
			headers.Del(HeaderCache)
			rc.items.Set(key, cachedResponse{status: status, headers: headers, body: w.body.Bytes()}, rc.ttl)
		}
	}
}
