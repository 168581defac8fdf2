package discovery

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/auth"
	"github.com/pulseapp/pulse-engine/internal/server"
)

// Registrar ties the discovery service into the HTTP server.
type Registrar struct {
	appCtx *app.AppContext
	svc    *Service
}

func NewRegistrar(appCtx *app.AppContext, svc *Service) *Registrar {
	return &Registrar{appCtx: appCtx, svc: svc}
}

func (r *Registrar) Register(api *gin.RouterGroup) {
	g := api.Group("/matches", auth.Middleware(r.appCtx))
	g.GET("/discover", r.discover)
}

func (r *Registrar) discover(c *gin.Context) {
	userID := auth.UserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	minAge, _ := strconv.Atoi(c.DefaultQuery("minAge", "18"))
	maxAge, _ := strconv.Atoi(c.DefaultQuery("maxAge", "100"))

	results, err := r.svc.Discover(c.Request.Context(), userID, minAge, maxAge, limit)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"potentialMatches": results,
	})
}
