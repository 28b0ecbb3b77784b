package services

import (
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

const chatSystemPrompt = `You are a healthcare resource analyst for a national facility dataset.
Answer using only the facility documents provided in the context.
Cite every facility you rely on by its id in square brackets, for example [GH-0001].
Cite several facilities as [GH-0001, GH-0002]. Never cite an id that is not in the context.
If the context does not contain the answer, say so plainly.`

const queryTranslatePrompt = `Translate the request into a JSON facility filter. Respond with JSON only.

Grammar:
{"conditions":[{"field":F,"op":O,"value":V}],"sort":{"field":F,"order":"asc|desc"},"limit":N}

Fields and operators:
- region, type, operational_status (text): eq, ne, contains, in (value: string, or list of strings for in)
- beds, staff_count (number): eq, ne, gt, gte, lt, lte (value: number)
- equipment, specialties, services (list): has, missing (value: string), has_any, has_all (value: list of strings)

Conditions are combined with AND. limit is between 1 and 50 and defaults to 20.
Sort only by text or number fields. Use no other keys, fields or operators.

Request: %s`

const planGeneratePrompt = `You are a healthcare resource planner. Draft a resource allocation plan.

Focus: %s

Regional facility data:
%s

Structure the plan as: 1. Executive summary 2. Gap analysis 3. Priority interventions
(ranked, with the facilities involved) 4. Staffing and equipment needs 5. Timeline
6. Success metrics. Ground every recommendation in the data above.`

// DefaultPrompts returns the built-in prompt templates by name.
func DefaultPrompts() map[string]string {
	return map[string]string{
		driven.PromptChatSystem:     chatSystemPrompt,
		driven.PromptQueryTranslate: queryTranslatePrompt,
		driven.PromptPlanGenerate:   planGeneratePrompt,
	}
}

// loadPrompt returns the stored template or the built-in default.
func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		prompt, err := store.Load(name)
		if err == nil && prompt != "" {
			return prompt
		}
		if err != nil {
			logger.Warn("load prompt %s: %v", name, err)
		}
	}
	return DefaultPrompts()[name]
}
