package devserver

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"github.com/vnfood/foodctl/pkg/apiresponses"
)

// serveWebRoot serves files from dir and falls back to index.html so a
// single page frontend can handle its own routes. Unknown /api paths stay 404.
func serveWebRoot(dir string) gin.HandlerFunc {
	fs := static.LocalFile(dir, false)
	fileserver := http.FileServer(fs)
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if strings.HasPrefix(p, "/api/") || p == "/api" {
			apiresponses.RespondNotFound(c, "route", p)
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.AbortWithStatus(http.StatusMethodNotAllowed)
			return
		}
		if !fs.Exists("/", p) || strings.HasSuffix(p, "/") {
			c.Request.URL.Path = "/"
			p = "/index.html"
		}
		if strings.HasPrefix(p, "/assets/") {
			c.Header("Cache-Control", "public, max-age=31536000, immutable")
		} else if path.Ext(p) == ".html" {
			c.Header("Cache-Control", "no-cache, must-revalidate")
		}
		fileserver.ServeHTTP(c.Writer, c.Request)
		c.Abort()
	}
}
