package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	registryroute "github.com/chirino/messaging-service/internal/registry/route"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
)

//go:embed openapi.yml
var specYAML []byte

var (
	loadOnce sync.Once
	doc      *openapi3.T
	docJSON  []byte
	loadErr  error
)

// Document returns the parsed and validated API description.
func Document() (*openapi3.T, error) {
	loadOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, loadErr = loader.LoadFromData(specYAML)
		if loadErr != nil {
			loadErr = fmt.Errorf("openapi: parse: %w", loadErr)
			return
		}
		if loadErr = doc.Validate(context.Background()); loadErr != nil {
			loadErr = fmt.Errorf("openapi: invalid document: %w", loadErr)
			return
		}
		docJSON, loadErr = doc.MarshalJSON()
	})
	return doc, loadErr
}

func init() {
	registryroute.Register(registryroute.Plugin{
		Name:   "openapi",
		Order:  10,
		Loader: MountRoutes,
	})
}

// MountRoutes serves the API description without authentication.
func MountRoutes(r *gin.Engine, _ registryroute.Deps) error {
	if _, err := Document(); err != nil {
		return err
	}
	r.GET("/api/openapi.yml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", specYAML)
	})
	r.GET("/api/openapi.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", docJSON)
	})
	return nil
}
