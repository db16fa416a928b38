// Package handlers wires the REST API onto the manager and analytics
// components.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/analytics"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/manager"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/middleware"
)

const sessionTTL = 24 * time.Hour

// Handlers bundles the REST handler dependencies.
type Handlers struct {
	mgr       *manager.Manager
	poller    *analytics.Poller
	jwtSecret []byte
	logger    logging.Logger
}

// New creates the handler set.
func New(mgr *manager.Manager, poller *analytics.Poller, jwtSecret []byte, logger logging.Logger) *Handlers {
	return &Handlers{
		mgr:       mgr,
		poller:    poller,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// RegisterRoutes mounts all API routes. Auth endpoints are public, the
// rest sits behind the session middleware which is a no-op while auth
// is disabled.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.POST("/login", h.Login)
	api.GET("/setup/required", h.SetupRequired)
	api.POST("/setup", h.Setup)
	api.POST("/setup/skip", h.SkipSetup)

	protected := api.Group("")
	protected.Use(middleware.SessionAuthMiddleware(h.jwtSecret, h.mgr.AuthEnabled))
	{
		protected.GET("/cameras", h.ListCameras)
		protected.POST("/cameras", h.AddCamera)
		protected.GET("/cameras/:id", h.GetCamera)
		protected.PUT("/cameras/:id", h.UpdateCamera)
		protected.DELETE("/cameras/:id", h.DeleteCamera)
		protected.POST("/cameras/:id/start", h.StartCamera)
		protected.POST("/cameras/:id/stop", h.StopCamera)
		protected.POST("/cameras/start-all", h.StartAll)
		protected.POST("/cameras/stop-all", h.StopAll)

		protected.GET("/settings", h.GetSettings)
		protected.POST("/settings", h.SaveSettings)
		protected.GET("/layouts", h.GetLayouts)
		protected.POST("/layouts", h.SaveLayouts)

		protected.GET("/analytics", h.GetAnalytics)
		protected.GET("/analytics/:path", h.GetStreamStats)
		protected.GET("/sessions", h.GetSessions)

		protected.GET("/status", h.GetStatus)
		protected.POST("/media/restart", h.RestartMedia)
	}
}

// Login verifies credentials and issues a session token.
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.mgr.VerifyLogin(req.Username, req.Password) {
		h.logger.WithField("username", req.Username).Warn("Failed login attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.IssueSessionToken(req.Username, h.jwtSecret, sessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// SetupRequired reports whether first-run setup is pending.
func (h *Handlers) SetupRequired(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"required": h.mgr.IsSetupRequired()})
}

// Setup stores the initial credentials.
func (h *Handlers) Setup(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.mgr.SetupUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, err := middleware.IssueSessionToken(req.Username, h.jwtSecret, sessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// SkipSetup disables auth permanently.
func (h *Handlers) SkipSetup(c *gin.Context) {
	if err := h.mgr.SkipSetup(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Setup skipped"})
}

func cameraID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
		return 0, false
	}
	return id, true
}

// ListCameras returns all cameras.
func (h *Handlers) ListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cameras": h.mgr.ListCameras()})
}

// GetCamera returns one camera by ID.
func (h *Handlers) GetCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	cam, found := h.mgr.GetCamera(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}
	c.JSON(http.StatusOK, cam)
}

// AddCamera creates a camera.
func (h *Handlers) AddCamera(c *gin.Context) {
	var input manager.CameraInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cam, err := h.mgr.AddCamera(input)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cam)
}

// UpdateCamera replaces a camera's configuration.
func (h *Handlers) UpdateCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}

	var input manager.CameraInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cam, err := h.mgr.UpdateCamera(id, input)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cam)
}

// DeleteCamera removes a camera.
func (h *Handlers) DeleteCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if err := h.mgr.DeleteCamera(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Camera deleted"})
}

// StartCamera marks a camera running.
func (h *Handlers) StartCamera(c *gin.Context) {
	h.setCameraStatus(c, true)
}

// StopCamera marks a camera stopped.
func (h *Handlers) StopCamera(c *gin.Context) {
	h.setCameraStatus(c, false)
}

func (h *Handlers) setCameraStatus(c *gin.Context, running bool) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	cam, err := h.mgr.SetCameraStatus(id, running)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cam)
}

// StartAll starts every camera.
func (h *Handlers) StartAll(c *gin.Context) {
	if err := h.mgr.StartAll(); err != nil {
		h.logger.WithError(err).Error("Start all cameras failed")
	}
	c.JSON(http.StatusOK, gin.H{"cameras": h.mgr.ListCameras()})
}

// StopAll stops every camera.
func (h *Handlers) StopAll(c *gin.Context) {
	if err := h.mgr.StopAll(); err != nil {
		h.logger.WithError(err).Error("Stop all cameras failed")
	}
	c.JSON(http.StatusOK, gin.H{"cameras": h.mgr.ListCameras()})
}

// GetSettings returns global and advanced settings.
func (h *Handlers) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings":         h.mgr.GetSettings(),
		"advancedSettings": h.mgr.GetAdvancedSettings(),
	})
}

// SaveSettings applies a settings update.
func (h *Handlers) SaveSettings(c *gin.Context) {
	var update manager.SettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.mgr.SaveSettings(update)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": saved})
}

// GetLayouts returns the composite layouts.
func (h *Handlers) GetLayouts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"layouts": h.mgr.GetLayouts()})
}

// SaveLayouts replaces the composite layouts.
func (h *Handlers) SaveLayouts(c *gin.Context) {
	var req struct {
		Layouts []models.Layout `json:"layouts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.mgr.SaveLayouts(req.Layouts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"layouts": saved})
}

// GetAnalytics returns the latest per-path health snapshot.
func (h *Handlers) GetAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, h.poller.GetAnalytics())
}

// GetStreamStats returns analytics for a single path.
func (h *Handlers) GetStreamStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.poller.GetStreamStats(c.Param("path")))
}

// GetSessions lists active client sessions.
func (h *Handlers) GetSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.mgr.GetActiveSessions()})
}

// GetStatus reports media server liveness.
func (h *Handlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mediaServerRunning": h.mgr.MediaRunning(),
	})
}

// RestartMedia forces a media server restart with current state.
func (h *Handlers) RestartMedia(c *gin.Context) {
	if err := h.mgr.RestartMedia(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Media server restarted"})
}
