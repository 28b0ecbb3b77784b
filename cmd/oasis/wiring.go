package main

import (
	"context"
	"fmt"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/dataset"
	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/oasis-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
	"github.com/custodia-labs/oasis-cli/internal/core/services"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// promptDir holds editable prompt files; empty means ~/.oasis/prompts.
var promptDir = ""

func openSettings(path string, noConfig bool) (driving.SettingsService, error) {
	if noConfig {
		return services.NewSettingsService(memory.NewConfigStore()), nil
	}
	store, err := file.NewConfigStore(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	return services.NewSettingsService(store), nil
}

type stores struct {
	facilities driven.FacilityStore
	runs       driven.RunStore
	plans      driven.PlanStore
	close      func() error
}

func openStores(s domain.StorageSettings) (*stores, error) {
	switch s.Backend {
	case domain.StorageMemory:
		return &stores{
			facilities: memory.NewFacilityStore(),
			runs:       memory.NewRunStore(),
			plans:      memory.NewPlanStore(),
			close:      func() error { return nil },
		}, nil
	case domain.StorageSQLite, "":
		db, err := sqlite.NewStore(s.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		logger.Debug("sqlite store at %s", db.Path())
		return &stores{
			facilities: db.FacilityStore(),
			runs:       db.RunStore(),
			plans:      db.PlanStore(),
			close:      db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrValidation, s.Backend)
	}
}

// buildServices assembles the engine. The dataset, when configured, is
// loaded into the store up front; the index is built lazily by the
// commands that retrieve.
func buildServices(ctx context.Context, settings *domain.AppSettings) (*cli.Services, error) {
	st, err := openStores(settings.Storage)
	if err != nil {
		return nil, err
	}

	models := ai.Initialise(ctx, settings)

	var prompts driven.PromptStore
	if p, err := file.NewPromptStore(promptDir, services.DefaultPrompts()); err != nil {
		logger.Warn("prompt files unavailable, using built-in prompts: %v", err)
	} else {
		prompts = p
	}

	recorder := services.NewTelemetryRecorder(st.runs, settings.TelemetryBuffer)
	index := services.NewEmbeddingIndex(models.EmbeddingService, settings.Calls)
	indexer := services.NewIndexer(index, st.facilities, recorder)
	sessions := services.NewSessionMemory(settings.SessionMaxTurns)
	scorer := services.NewDesertScorer(settings.Scoring)

	closeAll := func() {
		if err := recorder.Close(); err != nil {
			logger.Warn("closing telemetry: %v", err)
		}
		models.Close()
		if err := st.close(); err != nil {
			logger.Warn("closing store: %v", err)
		}
	}

	svc := &cli.Services{
		Answer:     services.NewAnswerComposer(index, sessions, models.LLMService, prompts, recorder, settings.Answer, settings.Calls),
		Sessions:   sessions,
		Query:      services.NewQueryTranslator(st.facilities, models.LLMService, prompts, recorder, settings.Calls),
		Analysis:   services.NewAnalysisService(st.facilities, scorer),
		Planning:   services.NewPlanningService(st.facilities, st.plans, scorer, models.LLMService, prompts, recorder, settings.Calls),
		Telemetry:  recorder,
		Index:      indexer,
		ServerAddr: settings.ServerAddr,
		Close:      closeAll,
	}
	if models.LLMService != nil {
		svc.LLMModel = models.LLMService.ModelName()
	}

	if path := settings.Data.FacilitiesPath; path != "" {
		n, err := dataset.NewLoader(path, st.facilities, nil).Reload(ctx)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		logger.Info("dataset %s: %d facilities", path, n)

		loader := dataset.NewLoader(path, st.facilities, indexer)
		svc.Dataset = loader
		svc.Watch = dataset.NewWatcher(loader, dataset.DefaultDebounce).Run
		svc.AutoWatch = settings.Data.Watch
	} else if n, err := st.facilities.Count(ctx); err != nil {
		logger.Warn("counting facilities: %v", err)
	} else if n == 0 {
		logger.Warn("facility store is empty; pass --data or set data.facilities_path")
	}

	return svc, nil
}
