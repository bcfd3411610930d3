// Package apiutil holds the request and response helpers shared by the API
// route plugins.
package apiutil

import (
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/policy"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/chirino/messaging-service/internal/security"
	"github.com/chirino/messaging-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules and reports fields by
// their JSON names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			log.Fatal("Failed to register notblank validator", "err", err)
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// Caller returns the policy caller for the authenticated request.
func Caller(c *gin.Context) policy.Caller {
	return policy.Caller{UserID: security.GetUserID(c)}
}

// BindJSON decodes and validates the request body into req. Failures are
// reported as ValidationErrors naming the offending field.
func BindJSON(c *gin.Context, req any) error {
	RegisterValidators()
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &registrystore.ValidationError{Field: fe.Field(), Message: describe(fe)}
	}
	return &registrystore.ValidationError{Field: "body", Message: "malformed JSON request body"}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "notblank":
		return "this field may not be blank"
	case "uuid":
		return "must be a valid UUID"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// PathUUID parses the named path parameter. A malformed id is reported as
// not found, since no such resource can exist.
func PathUUID(c *gin.Context, name, resource string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &registrystore.NotFoundError{Resource: resource, ID: raw}
	}
	return id, nil
}

// BodyUUID parses a uuid taken from a request body field.
func BodyUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &registrystore.ValidationError{Field: field, Message: "must be a valid UUID"}
	}
	return id, nil
}

// ListRequest captures the query parameters and absolute request URL used
// for pagination links.
func ListRequest(c *gin.Context, cfg *config.Config) service.ListRequest {
	return service.ListRequest{
		Params:  c.Request.URL.Query(),
		BaseURL: RequestURL(c, cfg),
	}
}

// RequestURL rebuilds the absolute URL of the current request, preferring the
// configured public URL for scheme and host.
func RequestURL(c *gin.Context, cfg *config.Config) *url.URL {
	u := *c.Request.URL
	if public := cfg.ResolvedPublicURL(); public != nil {
		u.Scheme = public.Scheme
		u.Host = public.Host
		u.Path = strings.TrimRight(public.Path, "/") + u.Path
		return &u
	}
	u.Scheme = "http"
	if c.Request.TLS != nil {
		u.Scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		u.Scheme = proto
	}
	u.Host = c.Request.Host
	return &u
}

// HandleError writes the JSON error response for err.
func HandleError(c *gin.Context, err error) {
	var unauthenticated *registrystore.UnauthenticatedError
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var forbidden *registrystore.ForbiddenError

	switch {
	case errors.As(err, &unauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthenticated", "error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"code": "conflict", "error": err.Error()})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"code": "forbidden", "error": err.Error()})
	default:
		log.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
