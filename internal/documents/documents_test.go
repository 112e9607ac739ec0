package documents

import (
	"strings"
	"testing"
	"time"

	"civicshield/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderNumber_UsesLastSixMillisDigits(t *testing.T) {
	now := time.UnixMilli(1718000123456)

	assert.Equal(t, "GO/CS-000007/123456", OrderNumber("CS-000007", now))
}

func TestOrderTemplate_ContainsRequiredSections(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	in := OrderInput{
		ComplaintID: "CS-000007",
		AnonymousID: "Unknown-4567",
		Department:  "electricity",
		Heading:     "Broken streetlight on Main Rd",
		Description: "The streetlight has exposed wiring.",
		Score:       75,
		Verdict:     "Complaint appears valid and has been verified for processing.",
		Category:    "electricity",
		Severity:    models.SeverityHigh,
	}

	doc := OrderTemplate(in, "GO/CS-000007/123456", now)

	for _, want := range []string{
		"GOVERNMENT OF INDIA",
		"CIVIC SHIELD COMPLAINT MANAGEMENT SYSTEM",
		"Order No: GO/CS-000007/123456",
		"Date: 10 June 2024",
		"Reference: Complaint ID CS-000007",
		"SUBJECT: Official Complaint Regarding - Broken streetlight on Main Rd",
		"Complainant ID: Unknown-4567",
		"Severity: HIGH",
		"Location: As mentioned in complaint",
		"- Validity Score: 75/100",
		"the electricity is hereby directed to:",
		"4. Resolve the complaint within 5-6 working days from the date of this order",
	} {
		assert.Contains(t, doc, want)
	}
	assert.NotContains(t, doc, "- Flags:")

	in.Flags = []string{"Heading too short"}
	in.Address = "Main Rd, Ward 4"
	doc = OrderTemplate(in, "GO/x/1", now)
	assert.Contains(t, doc, "- Flags: Heading too short")
	assert.Contains(t, doc, "Location: Main Rd, Ward 4")
}

func TestOrderFromComplaint(t *testing.T) {
	c := &models.Complaint{ComplaintID: "CS-000001", Department: "water", Location: &models.Location{Address: "Sector 9"}}
	a := models.AIAnalysis{Score: 60, Severity: models.SeverityMedium, Category: "water"}

	in := OrderFromComplaint(c, a)

	assert.Equal(t, "Sector 9", in.Address)
	assert.Equal(t, 60, in.Score)
	assert.Contains(t, OrderPrompt(in), "Location: Sector 9")
	assert.Contains(t, OrderPrompt(OrderInput{}), "Location: Not provided")
}

func TestLegalNotice(t *testing.T) {
	deadline := time.Date(2024, 6, 18, 9, 30, 0, 0, time.UTC)
	c := &models.Complaint{
		ComplaintID:        "CS-000007",
		Department:         "electricity",
		Heading:            "Broken streetlight on Main Rd",
		Status:             models.StatusEscalated,
		CreatedAt:          time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		EscalationDeadline: &deadline,
	}

	n := LegalNotice(c, time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "Legal Notice - Non-Action on Complaint CS-000007", n.Subject)
	assert.Equal(t, "CS-000007", n.Reference)
	assert.True(t, strings.HasPrefix(n.Body, "LEGAL NOTICE"))
	assert.Contains(t, n.Body, "Date: 20 June 2024")
	assert.Contains(t, n.Body, "- Filed On: 01/06/2024")
	assert.Contains(t, n.Body, "- Deadline: 18/06/2024")
	assert.Contains(t, n.Body, "- Status: Escalated due to non-response")
	assert.Contains(t, n.Body, `regarding "Broken streetlight on Main Rd"`)

	c.EscalationDeadline = nil
	c.Status = models.StatusUserNotResolved
	n = LegalNotice(c, time.Now())
	assert.Contains(t, n.Body, "- Deadline: Expired")
	assert.Contains(t, n.Body, "- Status: Escalated after an unsatisfactory response")
}

func TestLawsuitProcedure(t *testing.T) {
	p := LawsuitProcedure()

	require.Len(t, p.Steps, 7)
	for i, s := range p.Steps {
		assert.Equal(t, i+1, s.Step)
		assert.NotEmpty(t, s.Title)
	}
	assert.Len(t, p.Platforms, 6)
	assert.Equal(t, "https://nalsa.gov.in", p.Steps[6].Link)
}
