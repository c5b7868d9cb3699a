package middleware

import (
	"io"

	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/utils"

	"github.com/gin-gonic/gin"
)

type compressWriter struct {
	gin.ResponseWriter
	encoder io.WriteCloser
}

func (w *compressWriter) Write(b []byte) (int, error) {
	return w.encoder.Write(b)
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.encoder.Write([]byte(s))
}

// CompressionMiddleware encodes response bodies with brotli or gzip,
// whichever the client accepts.
func CompressionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		algorithm := utils.NegotiateCompression(c.GetHeader("Accept-Encoding"))
		if algorithm == utils.CompressionNone || c.Request.Method == "HEAD" {
			c.Next()
			return
		}

		encoder, err := utils.NewCompressWriter(c.Writer, algorithm)
		if err != nil {
			c.Next()
			return
		}

		c.Header("Content-Encoding", string(algorithm))
		c.Header("Vary", "Accept-Encoding")
		c.Writer.Header().Del("Content-Length")
		c.Writer = &compressWriter{ResponseWriter: c.Writer, encoder: encoder}

		defer func() {
			if err := encoder.Close(); err != nil {
				logger.Warn("Failed to flush compressed response", "error", err)
			}
		}()

		c.Next()
	}
}
