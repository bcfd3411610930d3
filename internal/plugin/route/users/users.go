package users

import (
	"net/http"

	"github.com/chirino/messaging-service/internal/plugin/route/apiutil"
	registryroute "github.com/chirino/messaging-service/internal/registry/route"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:   "users",
		Order:  120,
		Loader: MountRoutes,
	})
}

// MountRoutes mounts the read-only user routes under /api.
func MountRoutes(r *gin.Engine, deps registryroute.Deps) error {
	g := deps.API(r)
	g.GET("/users", func(c *gin.Context) {
		page, err := deps.Service.ListUsers(c.Request.Context(), apiutil.Caller(c), apiutil.ListRequest(c, deps.Config))
		if err != nil {
			apiutil.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	})
	g.GET("/users/:userId", func(c *gin.Context) {
		user, err := deps.Service.GetUser(c.Request.Context(), apiutil.Caller(c), c.Param("userId"))
		if err != nil {
			apiutil.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	})
	return nil
}
