// Package api exposes the polling boundary over HTTP. Progress is pulled
// by clients, never pushed.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AlikanakelaKarwowski/emularr/internal/catalog"
	"github.com/AlikanakelaKarwowski/emularr/internal/download"
	"github.com/AlikanakelaKarwowski/emularr/utils"
)

// NewRouter wires the REST surface around the controller and the library
// store. library may be nil (CLI-only deployments without a catalog).
func NewRouter(ctrl *download.Controller, library *catalog.Store) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(), recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{ctrl: ctrl, library: library}
	v1 := router.Group("/api/v1")
	{
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", h.startDownload)
			downloads.GET("", h.listDownloads)
			downloads.GET("/:id", h.getDownload)
			downloads.POST("/:id/pause", h.pauseDownload)
			downloads.POST("/:id/resume", h.resumeDownload)
			downloads.DELETE("/:id", h.cancelDownload)
			downloads.POST("/prune", h.pruneDownloads)
		}
		v1.GET("/library", h.listLibrary)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	log := utils.GetLogger("api")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

func recovery() gin.HandlerFunc {
	log := utils.GetLogger("api")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("Handler panicked")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
