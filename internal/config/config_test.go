package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("AI_RETRY_BASE_DELAY", "")
	t.Setenv("MESSAGES_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.MessagesDir)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, VerdictBaseDelay, cfg.AI.BaseDelay)
	assert.Equal(t, VerdictMaxRetries, cfg.AI.MaxRetries)
	assert.Equal(t, IDFCacheTTL, cfg.Embedding.TTL)
	assert.Equal(t, 0.60, cfg.Embedding.Threshold)
	assert.Equal(t, 3, cfg.Embedding.TopK)
	assert.Equal(t, time.Hour, cfg.Escalation.Interval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("AI_RETRY_BASE_DELAY", "10ms")
	t.Setenv("PIPELINE_WORKERS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("MESSAGES_DIR", "/etc/civicshield/messages")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10*time.Millisecond, cfg.AI.BaseDelay)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "/etc/civicshield/messages", cfg.MessagesDir)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseDirectory(t *testing.T) {
	data := []byte(`
departments:
  - id: Water
    name: Water Supply
    authorities:
      - name: Jal Board
        email: jal@example.gov
  - id: police
`)
	d, err := ParseDirectory(data)
	require.NoError(t, err)

	assert.True(t, d.HasDepartment("WATER"))
	assert.Equal(t, "Water Supply", d.Department("water").Name)
	assert.Equal(t, "police", d.Department("police").Name)
	assert.Equal(t, "jal@example.gov", d.AuthorityEmail("water", "jal board"))
	assert.Empty(t, d.AuthorityEmail("police", "Jal Board"))
	assert.False(t, d.HasDepartment("revenue"))
}

func TestParseDirectory_RejectsDuplicates(t *testing.T) {
	_, err := ParseDirectory([]byte("departments:\n  - id: water\n  - id: WATER\n"))
	assert.Error(t, err)

	_, err = ParseDirectory([]byte("departments:\n  - name: nameless\n"))
	assert.Error(t, err)
}

func TestDefaultDirectory_ListsBuiltInDepartments(t *testing.T) {
	d := DefaultDirectory()
	assert.Len(t, d.Departments, len(Departments))
	assert.True(t, d.HasDepartment("publicworks"))
	assert.Equal(t, "Municipal", d.Department("municipal").Name)
}
