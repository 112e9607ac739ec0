package documents

import (
	"fmt"
	"time"

	"civicshield/backend/internal/models"
)

// Notice is a rendered legal notice ready to be sent.
type Notice struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Reference string `json:"reference"`
}

// LegalNotice renders the notice sent to an authority that let the
// escalation deadline pass.
func LegalNotice(c *models.Complaint, now time.Time) Notice {
	deadline := "Expired"
	if c.EscalationDeadline != nil {
		deadline = c.EscalationDeadline.Format(shortDate)
	}
	status := "Escalated due to non-response"
	if c.Status == models.StatusUserNotResolved {
		status = "Escalated after an unsatisfactory response"
	}

	body := fmt.Sprintf(`LEGAL NOTICE

Date: %s

To,
The Head of Department,
%s

Subject: Legal Notice regarding non-action on Complaint ID: %s

Dear Sir/Madam,

This is to bring to your notice that a formal complaint (ID: %s) was registered through the Civic Shield Complaint Management System regarding "%s".

Despite the complaint being verified, approved by the administrative officer, and forwarded to your department for resolution, NO action has been taken within the stipulated time frame of 5-6 working days.

COMPLAINT DETAILS:
- Complaint ID: %s
- Department: %s
- Filed On: %s
- Deadline: %s
- Status: %s

As per the Right to Information Act 2005, Public Grievance Redressal mechanism, and various State Grievance Redressal Acts, every citizen has the right to timely redressal of their grievances.

The failure to act on this complaint constitutes:
1. Violation of citizen's right to grievance redressal
2. Negligence of official duty
3. Potential grounds for legal action under Section 4 of the RTI Act

This notice serves as a formal warning. If no satisfactory response is received within 15 days from the date of this notice, the complainant reserves the right to:
1. File a formal complaint with the State Human Rights Commission
2. Approach the High Court under Article 226 of the Constitution
3. File an RTI application seeking reasons for non-action
4. Report the matter to the Anti-Corruption Bureau

We strongly advise immediate action on the said complaint.

Yours faithfully,
[Through Civic Shield Complaint Management System]
Complaint Reference: %s`,
		now.Format(longDate),
		c.Department,
		c.ComplaintID,
		c.ComplaintID, c.Heading,
		c.ComplaintID,
		c.Department,
		c.CreatedAt.Format(shortDate),
		deadline,
		status,
		c.ComplaintID,
	)

	return Notice{
		Subject:   "Legal Notice - Non-Action on Complaint " + c.ComplaintID,
		Body:      body,
		Reference: c.ComplaintID,
	}
}

// ProcedureStep is one step of the lawsuit filing guide.
type ProcedureStep struct {
	Step        int    `json:"step"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// Platform is an external portal relevant to legal escalation.
type Platform struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Procedure is the full lawsuit filing guide.
type Procedure struct {
	Steps     []ProcedureStep `json:"steps"`
	Platforms []Platform      `json:"platforms"`
}

// LawsuitProcedure returns the ordered filing steps and the portal list.
func LawsuitProcedure() Procedure {
	return Procedure{
		Steps: []ProcedureStep{
			{Step: 1, Title: "Document Everything", Description: "Save all complaint details, tracking history, government order, and escalation notifications as evidence."},
			{Step: 2, Title: "Send Legal Notice", Description: "A legal notice will be sent to the concerned authority via email through our platform. Keep a copy for your records."},
			{Step: 3, Title: "Wait for Response", Description: "Allow 15 days for the authority to respond to the legal notice."},
			{Step: 4, Title: "File RTI Application", Description: "File an RTI application at rtionline.gov.in seeking reasons for non-action on your complaint.", Link: "https://rtionline.gov.in"},
			{Step: 5, Title: "Approach Consumer Forum / Lokpal", Description: "File a complaint with the State Consumer Forum or Lokpal portal for grievance redressal.", Link: "https://lokpal.gov.in"},
			{Step: 6, Title: "File Case in Court", Description: "If all else fails, file a case through the eFiling portal of Indian Courts.", Link: "https://efiling.ecourts.gov.in"},
			{Step: 7, Title: "Seek Legal Aid", Description: "If you need free legal assistance, contact the National Legal Services Authority (NALSA).", Link: "https://nalsa.gov.in"},
		},
		Platforms: []Platform{
			{Name: "eFiling - Indian Courts", URL: "https://efiling.ecourts.gov.in", Description: "File cases electronically in Indian courts"},
			{Name: "RTI Online", URL: "https://rtionline.gov.in", Description: "File Right to Information applications"},
			{Name: "CPGRAMS", URL: "https://pgportal.gov.in", Description: "Centralized Public Grievance Portal"},
			{Name: "Lokpal Portal", URL: "https://lokpal.gov.in", Description: "Anti-corruption ombudsman"},
			{Name: "NALSA", URL: "https://nalsa.gov.in", Description: "Free legal aid services"},
			{Name: "National Consumer Helpline", URL: "https://consumerhelpline.gov.in", Description: "Consumer complaint portal"},
		},
	}
}
