package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rshade/archcost/internal/resource"
)

// DefaultAppName is used when a generation request names no application.
const DefaultAppName = "3-tier web app"

const architectureSystemPrompt = `You design Azure architectures.
Return ONLY a valid JSON object with exactly these keys:
{
  "diagram": "graph TD\nA[Frontend]-->B[Backend]-->C[Database]",
  "terraform": "resource \"azurerm_resource_group\" \"rg\" { name = \"demo\" location = \"eastus\" }"
}
- Do NOT wrap code in triple backticks.
- diagram MUST be raw Mermaid starting with graph.
- terraform MUST be valid HCL for Azure resources.
- Keep it concise and runnable (use sensible defaults/SKUs).`

const proposeSystemPrompt = `You list the billable cloud resources described by an architecture.
Return ONLY a JSON array. Each element has the keys:
provider (azure, aws or gcp), serviceKind (one of app_service, vm, managed_sql,
object_storage, load_balancer, application_gateway, api_gateway, cache,
container_orchestrator, log_ingestion), skuOrInstanceType, quantity, region,
and optionally sizeGB, dutyHours, ruleCount, dataProcessedGB, capacityUnits.
Omit anything you are unsure about.`

// Chatter sends a chat conversation and returns the reply text.
type Chatter interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Generator produces architecture artifacts and item proposals.
type Generator struct {
	chat Chatter
}

// NewGenerator creates a Generator over chat.
func NewGenerator(chat Chatter) *Generator {
	return &Generator{chat: chat}
}

// Architecture asks the model for a diagram and Terraform for appName. Both
// payloads are fence-stripped. It fails with ErrEmptyArtifact when the reply
// carries neither.
func (g *Generator) Architecture(ctx context.Context, appName, prompt string) (Artifacts, error) {
	if strings.TrimSpace(appName) == "" {
		appName = DefaultAppName
	}
	user := fmt.Sprintf("Create an Azure architecture for: %s.\nAdditional requirements (optional): %s\nRespond with JSON only (no markdown).",
		appName, prompt)

	content, err := g.chat.Chat(ctx, []Message{
		{Role: "system", Content: architectureSystemPrompt},
		{Role: "user", Content: user},
	})
	if err != nil {
		return Artifacts{}, err
	}

	a := ExtractArtifacts(content)
	a.Diagram = StripFences(a.Diagram)
	a.Terraform = StripFences(a.Terraform)
	if a.Empty() {
		return Artifacts{}, ErrEmptyArtifact
	}
	return a, nil
}

// ProposeItems asks the model which billable items text describes. Items are
// returned as decoded; callers validate them.
func (g *Generator) ProposeItems(ctx context.Context, text string) ([]resource.Item, error) {
	content, err := g.chat.Chat(ctx, []Message{
		{Role: "system", Content: proposeSystemPrompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		return nil, err
	}

	body := StripFences(content)
	start, end := strings.IndexByte(body, '['), strings.LastIndexByte(body, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no item array in reply", ErrEmptyArtifact)
	}
	var items []resource.Item
	if err := json.Unmarshal([]byte(body[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("decode proposed items: %w", err)
	}
	return items, nil
}
