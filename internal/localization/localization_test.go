package localization

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HistoryCatalogue(t *testing.T) {
	l := Default()

	assert.Equal(t, "Complaint has been submitted successfully.", l.GetString("en", "history.submitted"))
	assert.Equal(t,
		"AI analysis complete. Complaint verified with score 75/100. Government order generated.",
		l.Format("en", "history.verified", 75))
	assert.Equal(t,
		"Complaint routed to water department admin for review.",
		l.Format("en", "history.sent_to_admin", "water"))
}

func TestGetString_Fallbacks(t *testing.T) {
	l := Default()

	assert.Equal(t, "Complaint has been submitted successfully.", l.GetString("hi", "history.submitted"))
	assert.Equal(t, "no.such.key", l.GetString("en", "no.such.key"))
}

func TestNewLocalizer_OverlaysDirectory(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hi.json"), []byte(`{"history.submitted": "शिकायत दर्ज की गई।"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	// Act
	l, err := NewLocalizer(dir)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "शिकायत दर्ज की गई।", l.GetString("hi", "history.submitted"))
	assert.Equal(t, "Complaint is being analyzed by AI system.", l.GetString("hi", "history.ai_review"))
	assert.ElementsMatch(t, []string{"en", "hi"}, l.Languages())
}

func TestNewLocalizer_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"), []byte(`{not json`), 0o644))

	_, err := NewLocalizer(dir)

	assert.Error(t, err)
}

func TestNewLocalizer_MissingDirectory(t *testing.T) {
	_, err := NewLocalizer(filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
}
