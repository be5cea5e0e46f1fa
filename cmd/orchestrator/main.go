package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/coordinator"
	"github.com/edgeorchestra/orchestrator/pkg/heartbeat"
	"github.com/edgeorchestra/orchestrator/pkg/liveness"
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/modelstore"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/edgeorchestra/orchestrator/pkg/store"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var config *Config

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "EdgeOrchestra federated-learning control-plane orchestrator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("edgeorch")
		viper.AutomaticEnv()

		viper.SetConfigName("orchestrator.yaml")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/edgeorchestra/")
		viper.AddConfigPath("$HOME/.config/edgeorchestra")
		viper.AddConfigPath(".")

		viper.ReadInConfig()

		if err := utils.UnmarshalConfig(*viper.GetViper(), &config); err != nil {
			log.Fatal(err)
		}

		config.Log()

		verbosity, err := cmd.Flags().GetCount("verbose")
		if err != nil {
			panic(err)
		}

		switch {
		case verbosity >= 2:
			log.SetLevel(log.TraceLevel)
		case verbosity >= 1:
			log.SetLevel(log.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		clk := clock.System{}

		jobStore, devStore, db := openStores()

		reg := registry.New(devStore, clk)
		tracker := liveness.New(clk, heartbeatDuration(config))

		modelFs := afero.NewBasePathFs(afero.NewOsFs(), modelStoreDir(config))
		models := modelstore.New(modelFs, clk, blobRetention(config))

		coord := coordinator.New(jobStore, reg, tracker, models, clk, coordinatorConfig(config))

		if err := coord.ResumeAll(ctx); err != nil {
			log.Fatal(err)
		}

		for _, job := range config.Jobs {
			if _, exists, err := jobStore.GetJob(ctx, job.JobID); err != nil {
				log.Fatalf("failed to look up job %s: %v", job.JobID, err)
			} else if exists {
				// Already resumed above; config just re-declares it
				// across restarts.
				continue
			}

			spec := coordinator.Spec{
				JobID:              job.JobID,
				Architecture:       job.Architecture,
				TargetRounds:       job.TargetRounds,
				Quorum:             job.Quorum,
				PartitionTotal:     job.PartitionTotal,
				RequiredFrameworks: job.RequiredFrameworks,
				LearningRate:       job.LearningRate,
			}
			if err := coord.StartJob(ctx, spec, job.InitialModelID); err != nil {
				log.Fatalf("failed to start job %s: %v", job.JobID, err)
			}
		}

		sweepPeriod := sweepPeriodDuration(config)
		sweeper := liveness.NewSweeper(reg, tracker, clk, sweepPeriod, heartbeatDuration(config), config.MissThreshold)
		sweeper.OnOffline = coord.HandleDeviceOffline
		go sweeper.Run(ctx)

		heartbeatSvc := heartbeat.NewService(reg, tracker, coord)
		registrySvc := registry.NewService(reg)
		modelSvc := modelstore.NewService(models, coord, chunkSizeBytes(config))

		grpcUris := config.ListenGrpc
		if len(grpcUris) == 0 {
			grpcUris = []string{"tcp://:9090"}
		}
		for _, uri := range grpcUris {
			go serveGrpc(registrySvc, heartbeatSvc, modelSvc, uri)
		}

		httpUris := config.ListenHttp
		if len(httpUris) == 0 {
			httpUris = []string{"tcp://:8080"}
		}
		for _, uri := range httpUris {
			go serveHttp(reg, coord, models, db, uri)
		}

		select {}
	},
}

func openStores() (coordinator.Store, registry.Store, *gorm.DB) {
	if config.DatabaseDSN == "" {
		log.Info("No database_dsn configured, using in-memory stores")
		return coordinator.NewMemStore(), registry.NewMemStore(), nil
	}

	dbLog := logrus.New()
	db, err := store.Open(config.DatabaseDSN, store.NewGormLogger(dbLog))
	if err != nil {
		log.Fatal(err)
	}
	return store.NewJobStore(db), store.NewDeviceStore(db), db
}

func heartbeatDuration(c *Config) time.Duration {
	if c.HeartbeatIntervalS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HeartbeatIntervalS * float64(time.Second))
}

func sweepPeriodDuration(c *Config) time.Duration {
	if c.SweepPeriodS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SweepPeriodS * float64(time.Second))
}

func blobRetention(c *Config) time.Duration {
	if c.BlobRetentionS <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.BlobRetentionS * float64(time.Second))
}

func modelStoreDir(c *Config) string {
	if c.ModelStoreDir == "" {
		return "/var/lib/edgeorchestra/models"
	}
	return c.ModelStoreDir
}

func chunkSizeBytes(c *Config) int {
	if c.ChunkSizeBytes <= 0 {
		return 1 << 20
	}
	return c.ChunkSizeBytes
}

func coordinatorConfig(c *Config) coordinator.Config {
	cfg := coordinator.DefaultConfig()
	if c.RoundTimeoutS > 0 {
		cfg.RoundTimeout = time.Duration(c.RoundTimeoutS * float64(time.Second))
	}
	if c.RoundGraceS > 0 {
		cfg.RoundGrace = time.Duration(c.RoundGraceS * float64(time.Second))
	}
	if c.SelectionBackoffS > 0 {
		cfg.SelectionBackoff = time.Duration(c.SelectionBackoffS * float64(time.Second))
	}
	if c.SelectionMaxAttempts > 0 {
		cfg.SelectionMaxAttempts = c.SelectionMaxAttempts
	}
	if c.RoundMaxRetries > 0 {
		cfg.RoundMaxRetries = c.RoundMaxRetries
	}
	if c.BatteryFloor > 0 {
		cfg.EligibilityConfig.BatteryFloor = c.BatteryFloor
	}
	if c.ThermalCeiling > 0 {
		cfg.EligibilityConfig.ThermalCeiling = c.ThermalCeiling
	}
	return cfg
}

func init() {
	rootCmd.Flags().StringSliceP("listen-http", "l", []string{"tcp://:8080"}, "Addresses to listen on for HTTP connections")
	rootCmd.Flags().StringSliceP("listen-grpc", "g", []string{"tcp://:9090"}, "Addresses to listen on for gRPC connections")
	rootCmd.Flags().CountP("verbose", "v", "Verbosity (repeatable)")

	viper.BindPFlag("listen_grpc", rootCmd.Flags().Lookup("listen-grpc"))
	viper.BindPFlag("listen_http", rootCmd.Flags().Lookup("listen-http"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
