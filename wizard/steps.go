package wizard

// Step describes one page of the launcher flow. The catalog is fixed at
// process start and shared read-only across sessions.
type Step struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`

	HasForm        bool `json:"has_form,omitempty"`
	HasUpload      bool `json:"has_upload,omitempty"`
	HasActivities  bool `json:"has_activities,omitempty"`
	HasPosting     bool `json:"has_posting,omitempty"`
	HasChat        bool `json:"has_chat,omitempty"`
	HasDataSources bool `json:"has_data_sources,omitempty"`
	HasPrompt      bool `json:"has_prompt,omitempty"`
	HasModelPicker bool `json:"has_model_picker,omitempty"`
	HasExamples    bool `json:"has_examples,omitempty"`
	HasXDecision   bool `json:"has_x_decision,omitempty"`
	HasXDetails    bool `json:"has_x_details,omitempty"`
	HasReview      bool `json:"has_review,omitempty"`
	HasSuccess     bool `json:"has_success,omitempty"`
}

// Pinned indices the navigation rules depend on.
const (
	StepWelcome   = 0
	StepXDecision = 9
	StepXDetails  = 10
	StepReview    = 11
	StepSuccess   = 12
)

var steps = []Step{
	{Index: 0, Title: "Create your own AI-agent in a few clicks",
		Content: "Launch and scale your AI-Agents with unprecedented ease and speed"},
	{Index: 1, Title: "It all starts with a name",
		Content: "How should we call your Agent?", HasForm: true},
	{Index: 2, Title: "Let's upload the picture of your agent", HasUpload: true},
	{Index: 3, Title: "What kind of activity do you want your agent to do?",
		HasActivities: true},
	{Index: 4, Title: "Posting Configuration",
		Content: "Configure how your agent will post content", HasPosting: true},
	{Index: 5, Title: "Chat and Interaction Configuration",
		Content: "Configure how your agent will interact with others", HasChat: true},
	{Index: 6, Title: "What data sources do you want your agent to use?",
		Content: "You can search for actions and sources", HasDataSources: true},
	{Index: 7, Title: "How do you want your agent to sound?",
		Content: "Enter the prompt and choose the language model",
		HasPrompt: true, HasModelPicker: true},
	{Index: 8, Title: "Let's see some examples from your agent",
		Content: "Add example interactions and posts", HasExamples: true},
	{Index: 9, Title: "Would you like to configure X account for your agent now?",
		HasXDecision: true},
	{Index: 10, Title: "Connect your X account",
		Content: "Enter the credentials your agent will use", HasXDetails: true},
	{Index: 11, Title: "Review", HasReview: true},
	{Index: 12, Title: "Your agent is live",
		Content: "Congratulations, you've just created a new agent!", HasSuccess: true},
}

// Steps returns the fixed step catalog.
func Steps() []Step { return steps }

// StepCount is the catalog size.
func StepCount() int { return len(steps) }

// DataSources is the known source-tag catalog.
var DataSources = []string{
	"Market data",
	"Social sentiment",
	"News feeds",
	"Financial reports",
	"Trading signals",
	"Economic indicators",
	"Company filings",
	"Technical analysis",
}

// Activities an agent can be configured for.
var Activities = []string{"post", "chat"}

// Models is the selectable language-model catalog.
var Models = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"claude-3-5-sonnet",
	"llama-3.3-70b",
	"mixtral-8x7b-32768",
	"deepseek-chat",
}

// DefaultModel powers new drafts.
const DefaultModel = "gpt-4o"

// KnownSource reports whether tag is part of the source catalog.
func KnownSource(tag string) bool {
	for _, s := range DataSources {
		if s == tag {
			return true
		}
	}
	return false
}

// KnownModel reports whether id is part of the model catalog.
func KnownModel(id string) bool {
	for _, m := range Models {
		if m == id {
			return true
		}
	}
	return false
}
