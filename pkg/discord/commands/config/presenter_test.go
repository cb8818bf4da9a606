package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookTestEmbedNamesFieldAndGuild(t *testing.T) {
	f, ok := DefaultSchema().Field("logging.modLogs.webhookUrl")
	require.True(t, ok)

	embed := WebhookTestEmbed(f, testGuild)
	assert.Equal(t, "Webhook test", embed.Title)
	assert.Contains(t, embed.Description, f.Label)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Guild "+testGuild, embed.Footer.Text)
	assert.NotEmpty(t, embed.Timestamp)
}
