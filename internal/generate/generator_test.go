package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/archcost/internal/resource"
)

type mockChatter struct {
	reply    string
	err      error
	messages []Message
}

func (m *mockChatter) Chat(_ context.Context, messages []Message) (string, error) {
	m.messages = messages
	return m.reply, m.err
}

func TestArchitecture(t *testing.T) {
	chat := &mockChatter{reply: "```json\n{\"diagram\":\"graph TD\\nA-->B\",\"terraform\":\"```hcl\\nresource \\\"a\\\" \\\"b\\\" {}\\n```\"}\n```"}

	a, err := NewGenerator(chat).Architecture(t.Context(), "", "cheap")

	require.NoError(t, err)
	assert.Equal(t, "graph TD\nA-->B", a.Diagram)
	assert.Equal(t, `resource "a" "b" {}`, a.Terraform)
	require.Len(t, chat.messages, 2)
	assert.Equal(t, "system", chat.messages[0].Role)
	assert.Contains(t, chat.messages[1].Content, DefaultAppName)
	assert.Contains(t, chat.messages[1].Content, "cheap")
}

func TestArchitecture_Errors(t *testing.T) {
	_, err := NewGenerator(&mockChatter{reply: "   "}).Architecture(t.Context(), "shop", "")
	assert.ErrorIs(t, err, ErrEmptyArtifact)

	upstream := errors.New("boom")
	_, err = NewGenerator(&mockChatter{err: upstream}).Architecture(t.Context(), "shop", "")
	assert.ErrorIs(t, err, upstream)
}

func TestProposeItems(t *testing.T) {
	chat := &mockChatter{reply: "Sure:\n```json\n[{\"provider\":\"azure\",\"serviceKind\":\"vm\",\"skuOrInstanceType\":\"Standard_D2s_v3\",\"quantity\":2,\"region\":\"eastus\",\"dutyHours\":200}]\n```"}

	items, err := NewGenerator(chat).ProposeItems(t.Context(), "two VMs")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, resource.VM, items[0].Service)
	assert.Equal(t, "Standard_D2s_v3", items[0].SKU)
	assert.Equal(t, 2, items[0].Quantity)
	require.NotNil(t, items[0].DutyHours)
	assert.InDelta(t, 200.0, *items[0].DutyHours, 1e-9)
}

func TestProposeItems_Malformed(t *testing.T) {
	for _, reply := range []string{"no idea", "[{\"quantity\": \"many\"}]", "] oops ["} {
		_, err := NewGenerator(&mockChatter{reply: reply}).ProposeItems(t.Context(), "x")
		assert.Error(t, err, reply)
	}
}

func TestMockArtifacts(t *testing.T) {
	for _, p := range []resource.Provider{resource.ProviderAWS, resource.ProviderGCP} {
		a, ok := MockArtifacts(p)
		require.True(t, ok, p)
		assert.False(t, a.Empty())
	}
	_, ok := MockArtifacts(resource.ProviderAzure)
	assert.False(t, ok)
}
