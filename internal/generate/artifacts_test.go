package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "  ", want: ""},
		{name: "no fence", in: "  graph TD\nA-->B  ", want: "graph TD\nA-->B"},
		{name: "mermaid", in: "```mermaid\ngraph TD\nA-->B\n```", want: "graph TD\nA-->B"},
		{name: "language case", in: "```Terraform\nresource \"x\" \"y\" {}\n```", want: "resource \"x\" \"y\" {}"},
		{name: "generic", in: "```\nplain\n```", want: "plain"},
		{name: "inner fence kept", in: "text ```mermaid\nA\n```", want: "text ```mermaid\nA\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtractArtifacts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Artifacts
	}{
		{
			name: "empty",
			in:   "",
			want: Artifacts{},
		},
		{
			name: "json object",
			in:   `{"diagram":"graph TD\nA-->B","terraform":"resource \"a\" \"b\" {}"}`,
			want: Artifacts{Diagram: "graph TD\nA-->B", Terraform: `resource "a" "b" {}`},
		},
		{
			name: "json with fenced values",
			in:   "```json\n{\"diagram\":\"```mermaid\\ngraph TD\\n```\",\"terraform\":\"\"}\n```",
			want: Artifacts{Diagram: "graph TD"},
		},
		{
			name: "fenced blocks in prose",
			in:   "Here you go:\n```mermaid\ngraph LR\nA-->B\n```\nand\n```hcl\nresource \"a\" \"b\" {}\n```\n",
			want: Artifacts{Diagram: "graph LR\nA-->B", Terraform: `resource "a" "b" {}`},
		},
		{
			name: "json without keys falls through",
			in:   `{"other": 1}`,
			want: Artifacts{Diagram: `{"other": 1}`},
		},
		{
			name: "fallback to whole reply",
			in:   "graph TD\nA-->B",
			want: Artifacts{Diagram: "graph TD\nA-->B"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractArtifacts(tt.in))
		})
	}
}
