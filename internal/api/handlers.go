package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlikanakelaKarwowski/emularr/internal/catalog"
	"github.com/AlikanakelaKarwowski/emularr/internal/download"
)

type handlers struct {
	ctrl    *download.Controller
	library *catalog.Store
}

type startDownloadInput struct {
	URL      string            `json:"url" binding:"required"`
	Name     string            `json:"name"`
	Platform string            `json:"platform"`
	Metadata map[string]string `json:"metadata"`
}

func (h *handlers) startDownload(c *gin.Context) {
	var input startDownloadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.ctrl.Start(input.URL, download.Metadata{
		Name:     input.Name,
		Platform: input.Platform,
		Extra:    input.Metadata,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (h *handlers) listDownloads(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"downloads": h.ctrl.Tasks()})
}

func (h *handlers) getDownload(c *gin.Context) {
	snap := h.ctrl.GetProgress(c.Param("id"))
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) pauseDownload(c *gin.Context) {
	if !h.ctrl.Pause(c.Param("id")) {
		c.JSON(http.StatusConflict, gin.H{"error": "task is not downloading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *handlers) resumeDownload(c *gin.Context) {
	if !h.ctrl.Resume(c.Param("id")) {
		c.JSON(http.StatusConflict, gin.H{"error": "task cannot be resumed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resumed": true})
}

func (h *handlers) cancelDownload(c *gin.Context) {
	if !h.ctrl.Cancel(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found or already finished"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (h *handlers) pruneDownloads(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pruned": h.ctrl.Prune()})
}

func (h *handlers) listLibrary(c *gin.Context) {
	if h.library == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "library is not configured"})
		return
	}
	var (
		entries []*catalog.Entry
		err     error
	)
	if platform := c.Query("platform"); platform != "" {
		entries, err = h.library.ListByPlatform(platform)
	} else {
		entries, err = h.library.List()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
