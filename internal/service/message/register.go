package message

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/auth"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/server"
)

// Registrar ties the messaging service into the HTTP server.
type Registrar struct {
	appCtx *app.AppContext
	svc    *Service
}

func NewRegistrar(appCtx *app.AppContext, svc *Service) *Registrar {
	return &Registrar{appCtx: appCtx, svc: svc}
}

func (r *Registrar) Register(api *gin.RouterGroup) {
	g := api.Group("/messages", auth.Middleware(r.appCtx))
	g.GET("/conversations/list", r.conversations)
	g.GET("/:matchId", r.history)
	g.POST("/:matchId/send", r.send)
	g.PUT("/:matchId/mark-read", r.markRead)
	g.DELETE("/message/:messageId", r.remove)
}

func (r *Registrar) history(c *gin.Context) {
	matchID, err := strconv.ParseUint(c.Param("matchId"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("matchId must be a valid id"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var token *string
	if t := c.Query("paginationToken"); t != "" {
		token = &t
	}

	messages, nextToken, err := r.svc.History(c.Request.Context(), matchID, auth.UserID(c), token, limit)
	if err != nil {
		server.RespondError(c, err)
		return
	}

	resp := gin.H{"success": true, "messages": messages}
	if nextToken != nil {
		resp["nextPaginationToken"] = *nextToken
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Registrar) send(c *gin.Context) {
	matchID, err := strconv.ParseUint(c.Param("matchId"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("matchId must be a valid id"))
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondError(c, svcErr.InvalidInput("invalid request body"))
		return
	}

	msg, err := r.svc.Send(c.Request.Context(), matchID, auth.UserID(c), req.Content)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (r *Registrar) markRead(c *gin.Context) {
	matchID, err := strconv.ParseUint(c.Param("matchId"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("matchId must be a valid id"))
		return
	}

	n, err := r.svc.MarkRead(c.Request.Context(), matchID, auth.UserID(c))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "markedAsRead": n})
}

func (r *Registrar) remove(c *gin.Context) {
	messageID, err := strconv.ParseUint(c.Param("messageId"), 10, 64)
	if err != nil {
		server.RespondError(c, svcErr.InvalidInput("messageId must be a valid id"))
		return
	}

	if err := r.svc.Delete(c.Request.Context(), messageID, auth.UserID(c)); err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted"})
}

func (r *Registrar) conversations(c *gin.Context) {
	conversations, err := r.svc.Conversations(c.Request.Context(), auth.UserID(c))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversations": conversations})
}
