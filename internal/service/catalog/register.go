package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/auth"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/server"
)

// Registrar exposes the hanky code catalog and per-profile code management.
type Registrar struct {
	appCtx *app.AppContext
	svc    *Service
}

func NewRegistrar(appCtx *app.AppContext, svc *Service) *Registrar {
	return &Registrar{appCtx: appCtx, svc: svc}
}

func (r *Registrar) Register(api *gin.RouterGroup) {
	// catalog browsing is public
	codes := api.Group("/hanky-codes")
	codes.GET("", r.listCodes)
	codes.GET("/categories", r.categories)
	codes.GET("/popular", r.popularCodes)
	codes.GET("/:id", r.getCode)

	mine := api.Group("/profiles/me/hanky-codes", auth.Middleware(r.appCtx))
	mine.GET("", r.myCodes)
	mine.POST("", r.assignCode)
	mine.DELETE("/:codeId", r.removeCode)
}

func (r *Registrar) listCodes(c *gin.Context) {
	codes, err := r.svc.ListCodes(c.Request.Context(), c.Query("category"))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hankyCodes": codes})
}

func (r *Registrar) categories(c *gin.Context) {
	categories, err := r.svc.Categories(c.Request.Context())
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": categories})
}

func (r *Registrar) popularCodes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	codes, err := r.svc.PopularCodes(c.Request.Context(), limit)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "popularCodes": codes})
}

func (r *Registrar) getCode(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("id must be a valid code id"))
		return
	}

	code, err := r.svc.GetCode(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hankyCode": code})
}

func (r *Registrar) myCodes(c *gin.Context) {
	codes, err := r.svc.UserCodes(c.Request.Context(), auth.UserID(c))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hankyCodes": codes})
}

func (r *Registrar) assignCode(c *gin.Context) {
	var req struct {
		HankyCodeID uint64 `json:"hankyCodeId"`
		Intensity   int    `json:"intensity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondError(c, svcErr.InvalidInput("invalid request body"))
		return
	}

	if err := r.svc.AssignCode(c.Request.Context(), auth.UserID(c), req.HankyCodeID, req.Intensity); err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Hanky code added to profile"})
}

func (r *Registrar) removeCode(c *gin.Context) {
	codeID, err := strconv.ParseUint(c.Param("codeId"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("codeId must be a valid code id"))
		return
	}

	if err := r.svc.RemoveCode(c.Request.Context(), auth.UserID(c), codeID); err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Hanky code removed from profile"})
}
