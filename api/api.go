package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/payflowhq/payflow"
	"github.com/payflowhq/payflow/api/middleware"
	"github.com/payflowhq/payflow/config"
	"github.com/payflowhq/payflow/internal/metrics"
)

type Api struct {
	payflow *payflow.PayFlow
	router  *gin.Engine
	metrics *metrics.Metrics
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/payments", a.InitiatePayment)
	router.GET("/payments", a.GetAllPayments)
	router.GET("/payments/:id", a.GetPayment)

	router.POST("/admin/reset", a.ResetState)
	router.POST("/admin/recover-settlements", a.RecoverSettlements)

	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}
	return a.router
}

// NewAPI returns nil when no configuration has been loaded.
func NewAPI(p *payflow.PayFlow, m *metrics.Metrics) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(serviceName(conf)))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware(conf))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{payflow: p, router: r, metrics: m}
}

func serviceName(conf *config.Configuration) string {
	if conf.ProjectName != "" {
		return conf.ProjectName
	}
	return "payflow"
}
