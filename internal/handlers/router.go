package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brownie44l1/leafgrade/internal/metrics"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

func parseTemplates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))
}

// NewRouter registers the pages, the JSON API, /health and /metrics.
// gatherer may be nil to leave /metrics out.
func NewRouter(h *Handler, m *metrics.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(observe(m))
	r.Use(enableCORS())

	r.SetHTMLTemplate(parseTemplates())

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, ViewPredict.Path())
	})
	for _, v := range Views {
		r.GET(v.Path(), h.Page(v))
	}
	r.POST(ViewPredict.Path(), h.SubmitPredict)

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/predict", h.APIPredict)
		v1.POST("/predict/export", h.APIExport)
		v1.GET("/history", h.APIHistory)
	}

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
