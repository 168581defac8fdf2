package match

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/auth"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/server"
)

// Registrar ties the match lifecycle into the HTTP server.
type Registrar struct {
	appCtx *app.AppContext
	svc    *Service
}

func NewRegistrar(appCtx *app.AppContext, svc *Service) *Registrar {
	return &Registrar{appCtx: appCtx, svc: svc}
}

func (r *Registrar) Register(api *gin.RouterGroup) {
	g := api.Group("/matches", auth.Middleware(r.appCtx))
	g.POST("", r.propose)
	g.GET("", r.list)
	g.GET("/stats", r.stats)
	g.PUT("/:matchId/accept", r.accept)
	g.PUT("/:matchId/decline", r.decline)
}

func (r *Registrar) propose(c *gin.Context) {
	var req struct {
		TargetUserID uint64 `json:"targetUserId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondError(c, svcErr.InvalidInput("invalid request body"))
		return
	}

	result, err := r.svc.Propose(c.Request.Context(), auth.UserID(c), req.TargetUserID)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "match": result})
}

func (r *Registrar) list(c *gin.Context) {
	status := c.DefaultQuery("status", "all")

	matches, err := r.svc.List(c.Request.Context(), auth.UserID(c), status)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "matches": matches})
}

func (r *Registrar) stats(c *gin.Context) {
	stats, err := r.svc.Stats(c.Request.Context(), auth.UserID(c))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (r *Registrar) accept(c *gin.Context) {
	matchID, err := strconv.ParseUint(c.Param("matchId"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("matchId must be a valid id"))
		return
	}

	m, err := r.svc.Accept(c.Request.Context(), matchID, auth.UserID(c))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": m.Status})
}

func (r *Registrar) decline(c *gin.Context) {
	matchID, err := strconv.ParseUint(c.Param("matchId"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("matchId must be a valid id"))
		return
	}

	m, err := r.svc.Decline(c.Request.Context(), matchID, auth.UserID(c))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": m.Status})
}
