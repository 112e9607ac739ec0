package models_test

import (
	"encoding/json"
	"testing"

	"civicshield/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseStatus_RoundTripsEveryStatus verifies every declared status parses back to itself.
func TestParseStatus_RoundTripsEveryStatus(t *testing.T) {
	for _, st := range models.Statuses() {
		parsed, err := models.ParseStatus(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
	}
}

func TestParseStatus_RejectsUnknown(t *testing.T) {
	_, err := models.ParseStatus("archived")
	assert.Error(t, err)

	_, err = models.ParseStatus("")
	assert.Error(t, err)
}

func TestStatus_JSONUsesWireName(t *testing.T) {
	// Arrange
	entry := models.StatusEntry{Status: models.StatusSentToAuthority, Message: "m", Actor: "system"}

	// Act
	data, err := json.Marshal(entry)
	require.NoError(t, err)

	// Assert
	assert.Contains(t, string(data), `"status":"sent_to_authority"`)

	var decoded models.StatusEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, models.StatusSentToAuthority, decoded.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"bogus"}`), &decoded))
}

func TestStatus_ScanAndValue(t *testing.T) {
	var st models.Status
	require.NoError(t, st.Scan([]byte("replied")))
	assert.Equal(t, models.StatusReplied, st)

	v, err := st.Value()
	require.NoError(t, err)
	assert.Equal(t, "replied", v)

	assert.Error(t, st.Scan(42))

	_, err = models.Status{}.Value()
	assert.Error(t, err, "zero status must never be persisted")
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[models.Status]bool{
		models.StatusAIRejected:    true,
		models.StatusAdminRejected: true,
		models.StatusUserResolved:  true,
		models.StatusLawsuitFiled:  true,
		models.StatusResolved:      true,
	}
	for _, st := range models.Statuses() {
		assert.Equal(t, terminal[st], st.IsTerminal(), st.String())
	}
}

func TestAnonymousID(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    string
		wantErr bool
	}{
		{name: "voter id", doc: "ABC1234567", want: "Unknown-4567"},
		{name: "exactly four", doc: "9876", want: "Unknown-9876"},
		{name: "surrounding spaces", doc: "  XYZ0001 ", want: "Unknown-0001"},
		{name: "devanagari digits", doc: "मतदाता१२३४", want: "Unknown-१२३४"},
		{name: "three multibyte runes", doc: "१२३", wantErr: true},
		{name: "too short", doc: "123", wantErr: true},
		{name: "empty", doc: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.AnonymousID(tt.doc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComplaintID_FormatAndParse(t *testing.T) {
	assert.Equal(t, "CS-000001", models.FormatComplaintID(1))
	assert.Equal(t, "CS-1234567", models.FormatComplaintID(1234567))

	n, ok := models.ParseComplaintSeq("CS-000042")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = models.ParseComplaintSeq("GO/CS-000042")
	assert.False(t, ok)
	_, ok = models.ParseComplaintSeq("CS-")
	assert.False(t, ok)
}

// TestStatusEntryBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestStatusEntryBeforeCreate_GeneratesUUID(t *testing.T) {
	// Arrange
	entry := &models.StatusEntry{Status: models.StatusSubmitted}
	assert.Empty(t, entry.ID)

	// Act
	err := entry.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	// Assert
	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(entry.ID)
	assert.NoError(t, parseErr)
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestStatusEntryBeforeCreate_PreservesExistingID(t *testing.T) {
	existing := uuid.New().String()
	entry := &models.StatusEntry{ID: existing}

	assert.NoError(t, entry.BeforeCreate(nil))
	assert.Equal(t, existing, entry.ID)
}

func TestActorHistoryLabel_HidesSubmitter(t *testing.T) {
	assert.Equal(t, "user", models.Actor{ID: "u-1", Name: "Asha Rao", Role: models.RoleUser}.HistoryLabel())
	assert.Equal(t, "Ward Admin", models.Actor{Name: "Ward Admin", Role: models.RoleAdmin}.HistoryLabel())
	assert.Equal(t, "ai_system", models.PipelineActor.HistoryLabel())
	assert.Equal(t, "system", models.SystemActor.HistoryLabel())
}
