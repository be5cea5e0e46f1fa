//go:build linux

package main

import (
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

func init() {
	log.Info("Detected Linux")

	// Disable transparent huge pages to workaround memory leaks
	utils.DisableTHP()
}
