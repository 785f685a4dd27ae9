package analyzer

import "github.com/weftlabs/weft/pkg/api"

// VisualPhase is the documentation layout group a node type belongs to
type VisualPhase string

const (
	PhaseTrigger   VisualPhase = "trigger"
	PhaseInput     VisualPhase = "input"
	PhaseTransform VisualPhase = "transform"
	PhaseOutput    VisualPhase = "output"
)

// VisualPhaseOrder is the left-to-right layout order of the visual groups
var VisualPhaseOrder = []VisualPhase{
	PhaseTrigger, PhaseInput, PhaseTransform, PhaseOutput,
}

// purposeByType maps node types to a human-readable purpose used when the
// node carries no explicit purpose field
var purposeByType = map[api.NodeID]string{
	"nodes-base.webhook":          "Receive incoming HTTP requests",
	"nodes-base.scheduleTrigger":  "Run on a fixed schedule",
	"nodes-base.manualTrigger":    "Run when started manually",
	"nodes-base.emailReadImap":    "Watch a mailbox for new messages",
	"nodes-base.httpRequest":      "Call an external HTTP API",
	"nodes-base.postgres":         "Query a PostgreSQL database",
	"nodes-base.mysql":            "Query a MySQL database",
	"nodes-base.redis":            "Read and write Redis keys",
	"nodes-base.googleSheets":     "Read and write spreadsheet rows",
	"nodes-base.set":              "Shape and rename fields",
	"nodes-base.code":             "Run a custom code step",
	"nodes-base.if":               "Branch on a condition",
	"nodes-base.switch":           "Route items across branches",
	"nodes-base.merge":            "Combine items from branches",
	"nodes-base.filter":           "Drop items that fail a condition",
	"nodes-base.slack":            "Send Slack messages",
	"nodes-base.emailSend":        "Send email",
	"nodes-base.discord":          "Send Discord messages",
	"nodes-base.telegram":         "Send Telegram messages",
	"nodes-base.github":           "Work with GitHub repositories",
	"nodes-base.notion":           "Work with Notion pages",
	"nodes-base.airtable":         "Work with Airtable records",
	"nodes-base.respondToWebhook": "Reply to the triggering request",
}

// authRequirements lists alternative credential kinds per node type. A node
// with an entry here needs at least one of the listed credentials configured
var authRequirements = map[api.NodeID][]string{
	"nodes-base.slack":        {"slackApi", "slackOAuth2Api"},
	"nodes-base.telegram":     {"telegramApi"},
	"nodes-base.discord":      {"discordBotApi", "discordWebhookApi"},
	"nodes-base.github":       {"githubApi", "githubOAuth2Api"},
	"nodes-base.notion":       {"notionApi"},
	"nodes-base.airtable":     {"airtableApi", "airtableTokenApi"},
	"nodes-base.googleSheets": {"googleSheetsOAuth2Api", "googleApi"},
	"nodes-base.postgres":     {"postgres"},
	"nodes-base.mysql":        {"mySql"},
	"nodes-base.redis":        {"redis"},
	"nodes-base.emailSend":    {"smtp"},
	"nodes-base.emailReadImap": {"imap"},
}

// requiredFields lists per-type parameters that must be non-empty before a
// node is usable
var requiredFields = map[api.NodeID][]string{
	"nodes-base.webhook":     {"path"},
	"nodes-base.httpRequest": {"url"},
	"nodes-base.slack":       {"channel", "text"},
	"nodes-base.emailSend":   {"toEmail", "subject"},
	"nodes-base.telegram":    {"chatId", "text"},
	"nodes-base.postgres":    {"query"},
	"nodes-base.mysql":       {"query"},
	"nodes-base.googleSheets": {"documentId"},
}

// placeholderMarkers are substrings that mark a parameter value as a
// template left for the user to fill in
var placeholderMarkers = []string{
	"your-",
	"your_",
	"example.com",
	"todo",
	"changeme",
	"placeholder",
	"[your_",
	"<your_",
	"xxx",
}

// triggerTypes and outputTypes drive the visual phase classification;
// anything unlisted that produces data is input, the rest transform
var triggerTypes = map[api.NodeID]bool{
	"nodes-base.webhook":         true,
	"nodes-base.scheduleTrigger": true,
	"nodes-base.manualTrigger":   true,
	"nodes-base.emailReadImap":   true,
}

var outputTypes = map[api.NodeID]bool{
	"nodes-base.slack":            true,
	"nodes-base.emailSend":        true,
	"nodes-base.discord":          true,
	"nodes-base.telegram":         true,
	"nodes-base.respondToWebhook": true,
}

var inputTypes = map[api.NodeID]bool{
	"nodes-base.httpRequest":  true,
	"nodes-base.postgres":     true,
	"nodes-base.mysql":        true,
	"nodes-base.redis":        true,
	"nodes-base.googleSheets": true,
	"nodes-base.airtable":     true,
	"nodes-base.notion":       true,
	"nodes-base.github":       true,
}

// ClassifyVisualPhase assigns a node type to its documentation layout group
func ClassifyVisualPhase(id api.NodeID) VisualPhase {
	switch {
	case triggerTypes[id]:
		return PhaseTrigger
	case outputTypes[id]:
		return PhaseOutput
	case inputTypes[id]:
		return PhaseInput
	default:
		return PhaseTransform
	}
}

// PurposeOf returns the static purpose for a node type, if known
func PurposeOf(id api.NodeID) string {
	return purposeByType[id]
}

// CredentialsFor returns the alternative credential kinds a node type needs
func CredentialsFor(id api.NodeID) []string {
	return authRequirements[id]
}

// RequiredFieldsFor returns the per-type required parameter names
func RequiredFieldsFor(id api.NodeID) []string {
	return requiredFields[id]
}
