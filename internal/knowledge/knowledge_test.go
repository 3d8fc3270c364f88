package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ShikshAq", b.Name)
	assert.NotEmpty(t, b.Version)
	assert.NotEmpty(t, b.FAQs)
	assert.NotEmpty(t, b.Contact.Phone)
	assert.NotEmpty(t, b.Contact.Email)
}

func TestSystemPromptEmbedsKnowledgeAndRules(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)

	prompt := b.SystemPrompt()
	for _, f := range b.FAQs {
		assert.Contains(t, prompt, f.Question)
		assert.Contains(t, prompt, f.Answer)
	}
	assert.Contains(t, prompt, b.Contact.Phone)
	assert.Contains(t, prompt, b.Contact.Email)
	assert.Contains(t, prompt, "2-3 sentences")
	assert.Contains(t, prompt, "warm")
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("SYSTEM", "Is it free?")
	assert.Equal(t, "SYSTEM\n\nUser: Is it free?\n\nAssistant:", got)
	assert.True(t, strings.HasSuffix(got, "Assistant:"))
}

func TestParseRejectsEmptyFAQs(t *testing.T) {
	_, err := Parse(`
name = "X"
[contact]
email = "a@b.c"
`)
	require.ErrorIs(t, err, errNoFAQs)
}

func TestParseRejectsMissingContact(t *testing.T) {
	_, err := Parse(`
name = "X"
[[faq]]
question = "q"
answer = "a"
`)
	require.ErrorIs(t, err, errNoContact)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(`
name = "X"
colour = "blue"
[contact]
email = "a@b.c"
[[faq]]
question = "q"
answer = "a"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
}

func TestContactLineWithSingleChannel(t *testing.T) {
	b, err := Parse(`
name = "X"
[contact]
phone = "123"
[[faq]]
question = "q"
answer = "a"
`)
	require.NoError(t, err)
	assert.Contains(t, b.SystemPrompt(), "team at 123.")
}
