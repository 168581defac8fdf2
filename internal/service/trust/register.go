package trust

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/auth"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/server"
)

// Registrar ties the trust engine into the HTTP server.
type Registrar struct {
	appCtx *app.AppContext
	svc    *Service
}

func NewRegistrar(appCtx *app.AppContext, svc *Service) *Registrar {
	return &Registrar{appCtx: appCtx, svc: svc}
}

func (r *Registrar) Register(api *gin.RouterGroup) {
	g := api.Group("/safety", auth.Middleware(r.appCtx))
	g.POST("/report", r.report)
	g.POST("/block", r.block)
	g.POST("/unblock", r.unblock)
	g.GET("/blocked", r.listBlocked)
	g.GET("/is-blocked/:userId", r.isBlocked)
	g.POST("/panic", r.triggerPanic)

	// anonymous aggregate, no auth required
	api.GET("/safety/stats", r.stats)
}

func (r *Registrar) report(c *gin.Context) {
	var req struct {
		ReportedUserID uint64 `json:"reportedUserId"`
		ReportType     string `json:"reportType"`
		Description    string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondError(c, svcErr.InvalidInput("invalid request body"))
		return
	}

	reportID, err := r.svc.Report(c.Request.Context(), auth.UserID(c), req.ReportedUserID, req.ReportType, req.Description)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Report submitted successfully. Our team will review it shortly.",
		"reportId": reportID,
	})
}

func (r *Registrar) block(c *gin.Context) {
	var req struct {
		BlockedUserID uint64 `json:"blockedUserId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondError(c, svcErr.InvalidInput("invalid request body"))
		return
	}

	if err := r.svc.Block(c.Request.Context(), auth.UserID(c), req.BlockedUserID); err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User blocked successfully"})
}

func (r *Registrar) unblock(c *gin.Context) {
	var req struct {
		UnblockedUserID uint64 `json:"unblockedUserId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondError(c, svcErr.InvalidInput("invalid request body"))
		return
	}

	if err := r.svc.Unblock(c.Request.Context(), auth.UserID(c), req.UnblockedUserID); err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User unblocked successfully"})
}

func (r *Registrar) listBlocked(c *gin.Context) {
	ids, err := r.svc.ListBlocked(c.Request.Context(), auth.UserID(c))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "blockedUsers": ids})
}

func (r *Registrar) isBlocked(c *gin.Context) {
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("userId must be a valid id"))
		return
	}

	blocked, err := r.svc.IsBlocked(c.Request.Context(), auth.UserID(c), targetID)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isBlocked": blocked})
}

func (r *Registrar) triggerPanic(c *gin.Context) {
	var req struct {
		Location  string `json:"location"`
		Situation string `json:"situation"`
	}
	// body is optional for a panic trigger
	_ = c.ShouldBindJSON(&req)

	incidentID, err := r.svc.Panic(c.Request.Context(), auth.UserID(c), req.Location, req.Situation)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Emergency alert activated.",
		"incidentId": incidentID,
	})
}

func (r *Registrar) stats(c *gin.Context) {
	stats, err := r.svc.Stats(c.Request.Context())
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
