package messages

import (
	"net/http"

	"github.com/chirino/messaging-service/internal/plugin/route/apiutil"
	registryroute "github.com/chirino/messaging-service/internal/registry/route"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:   "messages",
		Order:  110,
		Loader: MountRoutes,
	})
}

type createRequest struct {
	Conversation string `json:"conversation" binding:"required,uuid"`
	MessageBody  string `json:"message_body" binding:"required,notblank"`
}

type updateRequest struct {
	MessageBody string `json:"message_body" binding:"required,notblank"`
}

// MountRoutes mounts the message routes under /api.
func MountRoutes(r *gin.Engine, deps registryroute.Deps) error {
	h := &handlers{deps: deps}
	g := deps.API(r)

	g.GET("/messages", h.list)
	g.POST("/messages", h.create)
	// Static segments take precedence over :messageId in gin's router.
	g.GET("/messages/my_messages", h.listSent)
	g.GET("/messages/unread", h.listUnread)
	g.GET("/messages/:messageId", h.get)
	g.PUT("/messages/:messageId", h.update)
	g.PATCH("/messages/:messageId", h.update)
	g.DELETE("/messages/:messageId", h.delete)
	g.POST("/messages/:messageId/mark_as_read", h.markRead)
	return nil
}

type handlers struct {
	deps registryroute.Deps
}

func (h *handlers) list(c *gin.Context) {
	page, err := h.deps.Service.ListMessages(c.Request.Context(), apiutil.Caller(c), apiutil.ListRequest(c, h.deps.Config))
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) listSent(c *gin.Context) {
	page, err := h.deps.Service.ListSentMessages(c.Request.Context(), apiutil.Caller(c), apiutil.ListRequest(c, h.deps.Config))
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) listUnread(c *gin.Context) {
	page, err := h.deps.Service.ListUnreadMessages(c.Request.Context(), apiutil.Caller(c), apiutil.ListRequest(c, h.deps.Config))
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) create(c *gin.Context) {
	var req createRequest
	if err := apiutil.BindJSON(c, &req); err != nil {
		apiutil.HandleError(c, err)
		return
	}
	conversationID, err := apiutil.BodyUUID(req.Conversation, "conversation")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	msg, err := h.deps.Service.CreateMessage(c.Request.Context(), apiutil.Caller(c), conversationID, req.MessageBody)
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handlers) get(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "messageId", "message")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	msg, err := h.deps.Service.GetMessage(c.Request.Context(), apiutil.Caller(c), id)
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *handlers) update(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "messageId", "message")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	var req updateRequest
	if err := apiutil.BindJSON(c, &req); err != nil {
		apiutil.HandleError(c, err)
		return
	}
	msg, err := h.deps.Service.UpdateMessage(c.Request.Context(), apiutil.Caller(c), id, req.MessageBody)
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *handlers) delete(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "messageId", "message")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	if err := h.deps.Service.DeleteMessage(c.Request.Context(), apiutil.Caller(c), id); err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) markRead(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "messageId", "message")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	msg, changed, err := h.deps.Service.MarkMessageRead(c.Request.Context(), apiutil.Caller(c), id)
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "message marked as read", "changed": changed, "message": msg})
}
