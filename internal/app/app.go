package app

import (
	"log"
	"os"

	"github.com/slack-go/slack"

	"abengine/internal/config"
	"abengine/internal/engine"
	"abengine/internal/httpx"
	slacknotify "abengine/internal/integrations/slack"
	"abengine/internal/registry"
	"abengine/internal/scheduler"
	"abengine/internal/storage/sqlite"
)

func Main() {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Timezone=%s SweepSchedule=%q Narrative=%v ExternalHTTPTimeout=%s",
		cfg.Timezone,
		cfg.SweepSchedule,
		cfg.NarrativeEnabled,
		appliedHTTPTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	os.MkdirAll(cfg.ReportOutputDir, 0755)
	log.Printf("Report output dir: %s", cfg.ReportOutputDir)

	var models *registry.Registry
	if cfg.ModelRegistryPath != "" {
		models, err = registry.LoadFile(cfg.ModelRegistryPath)
		if err != nil {
			log.Fatalf("Failed to load model registry %s: %v", cfg.ModelRegistryPath, err)
		}
	} else {
		models = registry.New(cfg.Models)
	}
	log.Printf("Model registry loaded: %d model(s)", models.Size())

	var notifier engine.Notifier
	if cfg.SlackBotToken != "" && cfg.EventChannelID != "" {
		api := slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(httpx.ExternalClient()))
		notifier = slacknotify.New(api, cfg.EventChannelID)
		log.Printf("Experiment events posting to channel %s", cfg.EventChannelID)
	}

	eng, err := engine.New(db, models, notifier)
	if err != nil {
		log.Fatalf("Failed to start experiment engine: %v", err)
	}

	scheduler.StartSweepScheduler(cfg, eng)

	log.Println("Starting experimentation engine...")
	select {}
}
