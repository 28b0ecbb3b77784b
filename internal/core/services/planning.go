package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// Ensure PlanningService implements the interface.
var _ driving.PlanningService = (*PlanningService)(nil)

const (
	planMaxTokens          = 2048
	keyFacilitiesPerRegion = 5
	defaultPlanHistory     = 20
)

// PlanningService drafts resource-allocation plans from scored regions.
type PlanningService struct {
	store    driven.FacilityStore
	plans    driven.PlanStore
	scorer   *DesertScorer
	llm      driven.LLMService
	prompts  driven.PromptStore
	recorder *TelemetryRecorder
	policy   domain.CallPolicy
}

// NewPlanningService creates a planning service. The llm, prompts and
// recorder parameters are optional.
func NewPlanningService(
	store driven.FacilityStore,
	plans driven.PlanStore,
	scorer *DesertScorer,
	llm driven.LLMService,
	prompts driven.PromptStore,
	recorder *TelemetryRecorder,
	policy domain.CallPolicy,
) *PlanningService {
	return &PlanningService{
		store:    store,
		plans:    plans,
		scorer:   scorer,
		llm:      llm,
		prompts:  prompts,
		recorder: recorder,
		policy:   policy,
	}
}

// Generate drafts and stores a plan. Region and specialty narrow the
// facilities considered; both match case-insensitive substrings.
func (s *PlanningService) Generate(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	logger.Section("Plan Generation")

	start := time.Now()
	facilities, err := s.store.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("read facilities: %w", err)
	}
	facilities = filterForPlan(facilities, req)
	if len(facilities) == 0 {
		return nil, fmt.Errorf("%w: no facilities match region %q and specialty %q",
			domain.ErrNotFound, req.Region, req.Specialty)
	}

	prompt := fmt.Sprintf(loadPrompt(s.prompts, driven.PromptPlanGenerate), planFocus(req), s.regionData(facilities))
	record := domain.RunRecord{
		Type:      domain.RunTypePlan,
		RunName:   "plan",
		StartTime: start.UTC(),
		Params: map[string]string{
			"region":    req.Region,
			"specialty": req.Specialty,
			"llm_model": s.llm.ModelName(),
		},
		Metrics: map[string]float64{"facilities": float64(len(facilities))},
	}

	text, err := callWithRetry(ctx, s.policy, "generate plan", func(ctx context.Context) (string, error) {
		return s.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: planMaxTokens, Temperature: 0.3})
	})
	record.Metrics["llm_latency_ms"] = millis(time.Since(start))
	if err != nil {
		record.Status = domain.RunStatusFailed
		record.Params["error"] = err.Error()
		s.recorder.Record(record)
		return nil, fmt.Errorf("%w: generate plan: %v", domain.ErrGeneration, err)
	}

	plan := domain.Plan{
		ID:        "plan_" + shortID(),
		Region:    orAll(req.Region),
		Specialty: orAll(req.Specialty),
		Text:      strings.TrimSpace(text),
		CreatedAt: time.Now().UTC(),
	}
	if s.plans != nil {
		if err := s.plans.Save(ctx, plan); err != nil {
			logger.Warn("save plan %s: %v", plan.ID, err)
		}
	}

	record.Status = domain.RunStatusFinished
	record.Params["plan_id"] = plan.ID
	record.Metrics["total_latency_ms"] = millis(time.Since(start))
	s.recorder.Record(record)
	return &plan, nil
}

// History returns the most recent plans.
func (s *PlanningService) History(ctx context.Context, limit int) ([]domain.Plan, error) {
	if s.plans == nil {
		return []domain.Plan{}, nil
	}
	if limit <= 0 {
		limit = defaultPlanHistory
	}
	plans, err := s.plans.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// regionData renders per-region summaries with their largest facilities.
func (s *PlanningService) regionData(facilities []domain.Facility) string {
	byRegion := map[string][]domain.Facility{}
	for _, f := range facilities {
		byRegion[regionOf(f)] = append(byRegion[regionOf(f)], f)
	}

	var b strings.Builder
	for _, summary := range s.scorer.ScoreRegions(facilities) {
		fs := byRegion[summary.Region]
		types := map[string]int{}
		for _, f := range fs {
			types[f.Type]++
		}

		fmt.Fprintf(&b, "Region: %s\n", summary.Region)
		fmt.Fprintf(&b, "  Facilities: %d, beds: %d, staff: %d\n", summary.Facilities, summary.TotalBeds, summary.TotalStaff)
		fmt.Fprintf(&b, "  Desert score: %.1f (%s), flagged facilities: %d\n", summary.DesertScore, summary.Severity, summary.FlaggedCount)
		fmt.Fprintf(&b, "  Types: %s\n", formatCounts(types))
		if len(summary.MissingServices) > 0 {
			fmt.Fprintf(&b, "  Missing essentials: %s\n", strings.Join(summary.MissingServices, ", "))
		}

		key := append([]domain.Facility(nil), fs...)
		sort.Slice(key, func(i, j int) bool {
			if key[i].Beds != key[j].Beds {
				return key[i].Beds > key[j].Beds
			}
			return key[i].ID < key[j].ID
		})
		if len(key) > keyFacilitiesPerRegion {
			key = key[:keyFacilitiesPerRegion]
		}
		b.WriteString("  Key facilities:\n")
		for _, f := range key {
			fmt.Fprintf(&b, "    - %s (%s, %s): %d beds, %d staff, specialties: %s\n",
				f.Name, f.ID, f.Type, f.Beds, f.StaffCount, strings.Join(f.Specialties, ", "))
		}
	}
	return b.String()
}

func filterForPlan(facilities []domain.Facility, req domain.PlanRequest) []domain.Facility {
	region := strings.ToLower(strings.TrimSpace(req.Region))
	specialty := strings.ToLower(strings.TrimSpace(req.Specialty))

	out := make([]domain.Facility, 0, len(facilities))
	for _, f := range facilities {
		if region != "" && !strings.Contains(strings.ToLower(f.Region), region) {
			continue
		}
		if specialty != "" && !containsFold(f.Specialties, specialty) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func containsFold(list []string, needle string) bool {
	for _, v := range list {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func planFocus(req domain.PlanRequest) string {
	parts := []string{"Region: " + orAll(req.Region), "Specialty: " + orAll(req.Specialty)}
	if d := strings.TrimSpace(req.Description); d != "" {
		parts = append(parts, "Request: "+d)
	}
	return strings.Join(parts, "\n")
}

func orAll(s string) string {
	if strings.TrimSpace(s) == "" {
		return "All"
	}
	return strings.TrimSpace(s)
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
