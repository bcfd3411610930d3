package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chirino/messaging-service/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxBodySizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("rejects oversized bodies", func(t *testing.T) {
		router := gin.New()
		router.Use(maxBodySizeMiddleware(4))
		router.POST("/api/messages", readBodyLengthHandler)

		req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("0123456789"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("passes bodies within the limit", func(t *testing.T) {
		router := gin.New()
		router.Use(maxBodySizeMiddleware(16))
		router.POST("/api/messages", readBodyLengthHandler)

		req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("0123456789"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "10", rec.Body.String())
	})

	t.Run("zero disables the limit", func(t *testing.T) {
		router := gin.New()
		router.Use(maxBodySizeMiddleware(0))
		router.POST("/api/messages", readBodyLengthHandler)

		req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("0123456789"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func readBodyLengthHandler(c *gin.Context) {
	n, err := io.Copy(io.Discard, c.Request.Body)
	if err != nil {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}
	c.String(http.StatusOK, "%d", n)
}

func TestStartServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = filepath.Join(t.TempDir(), "serve.db")
	cfg.CacheType = "local"
	cfg.Listener.Port = 0
	cfg.Listener.EnableTLS = false
	cfg.DrainTimeout = 5

	ctx := config.WithContext(context.Background(), &cfg)
	srv, err := StartServer(ctx, &cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	base := fmt.Sprintf("http://127.0.0.1:%d", srv.Running.Port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(base + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(base + "/api/users")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/api/users", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer alice")
	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Count   int `json:"count"`
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Equal(t, 1, page.Count)
	assert.Equal(t, "alice", page.Results[0].ID)
}
