package generate

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// Artifacts are the payloads of an architecture generation.
type Artifacts struct {
	Diagram   string `json:"diagram" yaml:"diagram"`
	Terraform string `json:"terraform" yaml:"terraform"`
}

// Empty reports whether neither payload is present.
func (a Artifacts) Empty() bool {
	return strings.TrimSpace(a.Diagram) == "" && strings.TrimSpace(a.Terraform) == ""
}

var (
	langFenceRes = []*regexp.Regexp{
		regexp.MustCompile("(?is)^```mermaid\\s*\\n(.*?)```$"),
		regexp.MustCompile("(?is)^```hcl\\s*\\n(.*?)```$"),
		regexp.MustCompile("(?is)^```terraform\\s*\\n(.*?)```$"),
		regexp.MustCompile("(?is)^```json\\s*\\n(.*?)```$"),
	}
	genericFenceRe = regexp.MustCompile("(?s)^```\\s*\\n?(.*?)```$")

	mermaidBlockRe = regexp.MustCompile("(?is)```mermaid\\s*\\n(.*?)```")
	hclBlockRe     = regexp.MustCompile("(?is)```(?:terraform|hcl)\\s*\\n(.*?)```")
)

// StripFences removes a ```lang ... ``` wrapper around the whole of text.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	for _, re := range langFenceRes {
		if m := re.FindStringSubmatch(s); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if m := genericFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ExtractArtifacts reads a model reply. A JSON object with diagram/terraform
// keys wins; otherwise fenced mermaid and terraform/hcl blocks are used; as a
// last resort the whole reply is taken as the diagram.
func ExtractArtifacts(content string) Artifacts {
	if strings.TrimSpace(content) == "" {
		return Artifacts{}
	}

	var obj Artifacts
	if err := json.Unmarshal([]byte(StripFences(content)), &obj); err == nil {
		a := Artifacts{Diagram: StripFences(obj.Diagram), Terraform: StripFences(obj.Terraform)}
		if !a.Empty() {
			return a
		}
	}

	var a Artifacts
	if m := mermaidBlockRe.FindStringSubmatch(content); m != nil {
		a.Diagram = strings.TrimSpace(m[1])
	}
	if m := hclBlockRe.FindStringSubmatch(content); m != nil {
		a.Terraform = strings.TrimSpace(m[1])
	}
	if !a.Empty() {
		return a
	}
	return Artifacts{Diagram: content}
}
