/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	conciliacion "github.com/Dussand/conciliacion-Gmoney"
	"github.com/Dussand/conciliacion-Gmoney/api/middleware"
	"github.com/Dussand/conciliacion-Gmoney/config"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

// Service is what the HTTP layer needs from a Conciliacion.
type Service interface {
	Reconcile(ctx context.Context, in conciliacion.RunInput) (*model.Report, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, operator string, limit, offset int) ([]*model.Run, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ExportReport(ctx context.Context, id string) ([]byte, error)
}

type Api struct {
	svc    Service
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/reconciliations", a.CreateReconciliation)
	router.GET("/reconciliations", a.ListReconciliations)
	router.GET("/reconciliations/:id", a.GetReconciliation)
	router.GET("/reconciliations/:id/report", a.GetReport)
	router.GET("/reconciliations/:id/export", a.ExportReport)
	return a.router
}

func NewAPI(svc Service) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Tracing.Enabled {
		r.Use(otelgin.Middleware(conf.Tracing.ServiceName))
	}
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{svc: svc, router: r}
}
