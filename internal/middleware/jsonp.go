package middleware

import (
	"bytes"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// callbackRe sanitizes JSONP callback names.
var callbackRe = regexp.MustCompile(`^pgxn_[a-zA-Z0-9_]+$`)

// JSONPMiddleware wraps JSON responses of GET requests carrying a valid
// `callback` query parameter into a JavaScript function call. Invalid
// callback names are ignored and the response stays plain JSON.
func JSONPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		callback := c.Query("callback")
		if c.Request.Method != http.MethodGet || !callbackRe.MatchString(callback) {
			c.Next()
			return
		}

		buf := &bufferingWriter{ResponseWriter: c.Writer}
		c.Writer = buf
		c.Next()

		body := bytes.TrimSpace(buf.buf.Bytes())
		out := make([]byte, 0, len(callback)+len(body)+2)
		out = append(out, callback...)
		out = append(out, '(')
		out = append(out, body...)
		out = append(out, ')')

		w := buf.ResponseWriter
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Del("Content-Length")
		w.WriteHeader(buf.status())
		_, _ = w.Write(out)
	}
}

// bufferingWriter captures the response body so it can be rewrapped after
// the handler ran.
type bufferingWriter struct {
	gin.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (w *bufferingWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferingWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferingWriter) WriteHeader(code int) {
	w.statusCode = code
}

func (w *bufferingWriter) status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}
