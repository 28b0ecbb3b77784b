package driven

// PromptStore provides access to LLM prompt templates.
type PromptStore interface {
	// Load returns the prompt template for the given name, falling back to
	// the built-in default when no override exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts.
	Reload()
}

// Well-known prompt names.
const (
	// PromptChatSystem is the system prompt for grounded answers.
	// It has no format placeholders.
	PromptChatSystem = "chat_system"

	// PromptQueryTranslate maps free text to the structured query grammar.
	// It expects a single %s placeholder for the user's request.
	PromptQueryTranslate = "query_translate"

	// PromptPlanGenerate drafts a resource-allocation plan.
	// It expects %s placeholders for the request focus and the region data.
	PromptPlanGenerate = "plan_generate"
)
