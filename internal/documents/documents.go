// Package documents renders the formal documents of the complaint workflow:
// government orders, legal notices and the lawsuit filing procedure.
// Everything here is deterministic and needs no external service.
package documents

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"civicshield/backend/internal/models"
)

const (
	longDate  = "02 January 2006"
	shortDate = "02/01/2006"
	heavyRule = "════════════════════════════════════════════════════════════════"
	lightRule = "═══════════════════════════════════════════════════════════════"
)

// OrderNumber derives the order number from the complaint id and the last
// six digits of the current unix time in milliseconds.
func OrderNumber(complaintID string, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return fmt.Sprintf("GO/%s/%s", complaintID, ms)
}

// OrderInput is what an order document is generated from.
type OrderInput struct {
	ComplaintID string
	AnonymousID string
	Department  string
	Heading     string
	Description string
	Address     string
	Score       int
	Verdict     string
	Category    string
	Severity    models.Severity
	Flags       []string
}

// OrderFromComplaint collects the order input of a complaint and its verdict.
func OrderFromComplaint(c *models.Complaint, a models.AIAnalysis) OrderInput {
	in := OrderInput{
		ComplaintID: c.ComplaintID,
		AnonymousID: c.AnonymousID,
		Department:  c.Department,
		Heading:     c.Heading,
		Description: c.Description,
		Score:       a.Score,
		Verdict:     a.Verdict,
		Category:    a.Category,
		Severity:    a.Severity,
		Flags:       a.Flags,
	}
	if c.Location != nil {
		in.Address = c.Location.Address
	}
	return in
}

// OrderTemplate renders the offline government order.
func OrderTemplate(in OrderInput, orderNumber string, now time.Time) string {
	location := in.Address
	if location == "" {
		location = "As mentioned in complaint"
	}
	severity := strings.ToUpper(string(in.Severity))

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(heavyRule)
	line("          GOVERNMENT OF INDIA")
	line("          CIVIC SHIELD COMPLAINT MANAGEMENT SYSTEM")
	line("          OFFICIAL GOVERNMENT ORDER")
	line(heavyRule)
	line("")
	line("Order No: %s", orderNumber)
	line("Date: %s", now.Format(longDate))
	line("Reference: Complaint ID %s", in.ComplaintID)
	line("")
	line("TO: The Head of Department")
	line("    %s", in.Department)
	line("")
	line("SUBJECT: Official Complaint Regarding - %s", in.Heading)
	line("")
	line(lightRule)
	line("")
	line("COMPLAINT DETAILS:")
	line("")
	line("Complainant ID: %s", in.AnonymousID)
	line("Department: %s", in.Department)
	line("Category: %s", in.Category)
	line("Severity: %s", severity)
	line("Location: %s", location)
	line("")
	line("DESCRIPTION:")
	line("%s", in.Description)
	line("")
	line(lightRule)
	line("")
	line("AI ANALYSIS REPORT:")
	line("- Validity Score: %d/100", in.Score)
	line("- Assessment: %s", in.Verdict)
	line("- Classification: %s", in.Category)
	line("- Priority Level: %s", severity)
	if len(in.Flags) > 0 {
		line("- Flags: %s", strings.Join(in.Flags, ", "))
	}
	line("")
	line(lightRule)
	line("")
	line("ORDER:")
	line("")
	line("In exercise of the powers conferred under the Civic Shield Complaint")
	line("Management System, the %s is hereby directed to:", in.Department)
	line("")
	line("1. Acknowledge receipt of this complaint within 24 hours")
	line("2. Initiate investigation into the matter immediately")
	line("3. Submit a progress report within 3 working days")
	line("4. Resolve the complaint within 5-6 working days from the date of this order")
	line("5. File a resolution report upon completion")
	line("")
	line("Non-compliance with the above directives may result in escalation")
	line("to higher authorities and potential legal proceedings.")
	line("")
	line(lightRule)
	line("")
	line("This is a system-generated document.")
	line("Civic Shield Complaint Management System")
	line("Government of India")
	line("")
	b.WriteString(heavyRule)
	return b.String()
}

// OrderPrompt is the instruction sent to the external order generator.
func OrderPrompt(in OrderInput) string {
	address := in.Address
	if address == "" {
		address = "Not provided"
	}
	return fmt.Sprintf(`Generate a formal government complaint order document based on the following:

COMPLAINT ID: %s
ANONYMOUS ID: %s
Department: %s
Heading: %s
Description: %s
Location: %s
Severity: %s
Category: %s

Generate a formal government order document that:
1. Has a proper header with "GOVERNMENT OF INDIA - CIVIC SHIELD COMPLAINT MANAGEMENT SYSTEM"
2. Includes order number, date
3. References the complaint details
4. Orders the relevant department to investigate and take action
5. Sets a timeline for resolution
6. Is professional and formal in tone

Return ONLY the document text, no markdown formatting.`,
		in.ComplaintID, in.AnonymousID, in.Department, in.Heading, in.Description, address, in.Severity, in.Category)
}
