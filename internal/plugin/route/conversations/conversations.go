package conversations

import (
	"net/http"

	"github.com/chirino/messaging-service/internal/plugin/route/apiutil"
	registryroute "github.com/chirino/messaging-service/internal/registry/route"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:   "conversations",
		Order:  100,
		Loader: MountRoutes,
	})
}

type participantsRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
}

type participantRequest struct {
	UserID string `json:"user_id" binding:"required,notblank"`
}

// MountRoutes mounts the conversation routes under /api.
func MountRoutes(r *gin.Engine, deps registryroute.Deps) error {
	h := &handlers{deps: deps}
	g := deps.API(r)

	g.GET("/conversations", h.list)
	g.POST("/conversations", h.create)
	g.GET("/conversations/:conversationId", h.get)
	g.PUT("/conversations/:conversationId", h.update)
	g.PATCH("/conversations/:conversationId", h.update)
	g.DELETE("/conversations/:conversationId", h.delete)
	g.POST("/conversations/:conversationId/add_participant", h.addParticipant)
	g.POST("/conversations/:conversationId/remove_participant", h.removeParticipant)
	g.GET("/conversations/:conversationId/messages", h.listMessages)
	return nil
}

type handlers struct {
	deps registryroute.Deps
}

func (h *handlers) list(c *gin.Context) {
	page, err := h.deps.Service.ListConversations(c.Request.Context(), apiutil.Caller(c), apiutil.ListRequest(c, h.deps.Config))
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) create(c *gin.Context) {
	var req participantsRequest
	if c.Request.ContentLength != 0 {
		if err := apiutil.BindJSON(c, &req); err != nil {
			apiutil.HandleError(c, err)
			return
		}
	}
	conv, err := h.deps.Service.CreateConversation(c.Request.Context(), apiutil.Caller(c), req.ParticipantIDs)
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *handlers) get(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "conversationId", "conversation")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	conv, err := h.deps.Service.GetConversation(c.Request.Context(), apiutil.Caller(c), id)
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *handlers) update(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "conversationId", "conversation")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	var req participantsRequest
	if err := apiutil.BindJSON(c, &req); err != nil {
		apiutil.HandleError(c, err)
		return
	}
	conv, err := h.deps.Service.UpdateConversation(c.Request.Context(), apiutil.Caller(c), id, req.ParticipantIDs)
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *handlers) delete(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "conversationId", "conversation")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	if err := h.deps.Service.DeleteConversation(c.Request.Context(), apiutil.Caller(c), id); err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) addParticipant(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "conversationId", "conversation")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	var req participantRequest
	if err := apiutil.BindJSON(c, &req); err != nil {
		apiutil.HandleError(c, err)
		return
	}
	user, err := h.deps.Service.AddParticipant(c.Request.Context(), apiutil.Caller(c), id, req.UserID)
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "participant added", "user": user})
}

func (h *handlers) removeParticipant(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "conversationId", "conversation")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	var req participantRequest
	if err := apiutil.BindJSON(c, &req); err != nil {
		apiutil.HandleError(c, err)
		return
	}
	if err := h.deps.Service.RemoveParticipant(c.Request.Context(), apiutil.Caller(c), id, req.UserID); err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "participant removed", "user_id": req.UserID})
}

func (h *handlers) listMessages(c *gin.Context) {
	id, err := apiutil.PathUUID(c, "conversationId", "conversation")
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	page, err := h.deps.Service.ListConversationMessages(c.Request.Context(), apiutil.Caller(c), id, apiutil.ListRequest(c, h.deps.Config))
	if err != nil {
		apiutil.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
