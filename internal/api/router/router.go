package router

import (
	"net/http"

	"github.com/cuongbtq/audio-analysis-proxy/internal/api/handler"
	"github.com/gin-gonic/gin"
)

const defaultServiceName = "audio-analysis-proxy"

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, maxUploadBytes int64) *gin.Engine {
	r := gin.New()
	if maxUploadBytes > 0 {
		r.MaxMultipartMemory = maxUploadBytes
	}

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	service := deps.ServiceName
	if service == "" {
		service = defaultServiceName
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	})

	analysisHandler := handler.NewAnalysisHandler(deps)

	api := r.Group("/api")
	{
		audio := api.Group("/audio-analysis")
		{
			// POST /api/audio-analysis - Submit an audio file
			audio.POST("", limitBody(maxUploadBytes), analysisHandler.Submit)

			// GET /api/audio-analysis?jobId=&userToken= - Poll the analysis result
			audio.GET("", analysisHandler.Poll)

			// OPTIONS /api/audio-analysis - CORS preflight
			audio.OPTIONS("", analysisHandler.Preflight)
		}
	}

	return r
}

// limitBody caps the request body size for uploads
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
