package main

import (
	echo "github.com/labstack/echo/v4"

	"github.com/edgeorchestra/orchestrator/pkg/coordinator"
	"github.com/edgeorchestra/orchestrator/pkg/httpapi"
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/modelstore"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
	"gorm.io/gorm"
)

func serveHttp(reg *registry.Registry, coord *coordinator.Coordinator, models *modelstore.Store, db *gorm.DB, uri string) {
	host, err := utils.ParseHttpUrl(uri)
	if err != nil {
		log.Fatal(err)
	}

	r := echo.New()
	r.HideBanner = true
	r.Use(utils.HttpLogger)

	httpapi.NewHandler(reg, coord, models, db, r)

	log.Info("Listening on http", host)

	if err := r.Start(host); err != nil {
		log.Fatal(err)
	}
}
