package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Complaint is a citizen grievance and everything the workflow attached to it.
type Complaint struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	ComplaintID string `gorm:"uniqueIndex;size:32" json:"complaintId"`
	OwnerID     string `gorm:"index;size:64" json:"-"`
	AnonymousID string `gorm:"size:32" json:"anonymousId"`

	Department  string     `gorm:"index;size:64" json:"department"`
	Heading     string     `json:"heading"`
	Description string     `gorm:"type:text" json:"description"`
	Documents   []Evidence `gorm:"serializer:json" json:"documents"`
	Location    *Location  `gorm:"serializer:json" json:"location,omitempty"`

	Status  Status        `gorm:"index;size:32" json:"status"`
	History []StatusEntry `gorm:"foreignKey:ComplaintRef" json:"statusHistory"`

	AIAnalysis AIAnalysis `gorm:"embedded;embeddedPrefix:ai_" json:"aiAnalysis"`
	GovtOrder  GovtOrder  `gorm:"embedded;embeddedPrefix:order_" json:"govtOrder"`
	Lawsuit    Lawsuit    `gorm:"embedded;embeddedPrefix:lawsuit_" json:"lawsuitDetails"`

	AdminRemarks      string         `json:"adminRemarks,omitempty"`
	TargetAuthority   string         `gorm:"index;size:64" json:"targetAuthority,omitempty"`
	AuthorityResponse string         `gorm:"type:text" json:"authorityResponse,omitempty"`
	UserResolution    UserResolution `gorm:"embedded;embeddedPrefix:resolution_" json:"userResolution"`

	UserConsentForData   *bool      `json:"userConsentForData"`
	DataRequestedByAdmin bool       `json:"dataRequestedByAdmin"`
	EscalationDeadline   *time.Time `gorm:"index" json:"escalationDeadline,omitempty"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Evidence is a reference to an uploaded supporting file.
type Evidence struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MediaType    string `json:"mimetype"`
	Size         int64  `json:"size"`
}

// Location is an optional geotag attached by the submitter.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// AIAnalysis is the verdict produced by the analysis pipeline.
// IsValid stays nil until the pipeline has finished.
type AIAnalysis struct {
	IsValid     *bool      `json:"isValid"`
	Score       int        `json:"score"`
	Verdict     string     `gorm:"type:text" json:"verdict"`
	Flags       []string   `gorm:"serializer:json" json:"flags"`
	Category    string     `json:"category"`
	Severity    Severity   `gorm:"size:16" json:"severity"`
	Source      string     `gorm:"size:16" json:"source,omitempty"`
	DuplicateOf string     `gorm:"size:32" json:"duplicateOf,omitempty"`
	AnalyzedAt  *time.Time `json:"analyzedAt"`
}

// GovtOrder is the formal order generated for verified complaints.
type GovtOrder struct {
	Content     string     `gorm:"type:text" json:"content"`
	GeneratedAt *time.Time `json:"generatedAt"`
	OrderNumber string     `gorm:"size:64" json:"orderNumber"`
}

// Lawsuit records the legal notice issued on escalation.
type Lawsuit struct {
	Filed           bool       `json:"filed"`
	FiledAt         *time.Time `json:"filedAt"`
	Reference       string     `gorm:"size:64" json:"reference"`
	NoticeContent   string     `gorm:"type:text" json:"noticeContent"`
	NoticeDelivered bool       `json:"noticeDelivered"`
}

// UserResolution is the submitter's verdict on an authority reply.
type UserResolution struct {
	Resolved   *bool      `json:"resolved"`
	Feedback   string     `gorm:"type:text" json:"feedback"`
	ResolvedAt *time.Time `json:"resolvedAt"`
}

// StatusEntry is one append-only line of a complaint's audit trail.
type StatusEntry struct {
	ID           string    `gorm:"primaryKey;size:36" json:"-"`
	ComplaintRef uint      `gorm:"uniqueIndex:idx_entry_seq;not null" json:"-"`
	Seq          int       `gorm:"uniqueIndex:idx_entry_seq;not null" json:"-"`
	Status       Status    `gorm:"size:32" json:"status"`
	Message      string    `gorm:"type:text" json:"message"`
	Actor        string    `gorm:"size:64" json:"updatedBy"`
	Timestamp    time.Time `json:"timestamp"`
}

// BeforeCreate assigns a UUID when the entry has none.
func (e *StatusEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return
}

// ComplaintEmbedding holds the vector of a complaint. It lives in its own
// table so regular complaint reads never load it.
type ComplaintEmbedding struct {
	ComplaintID string          `gorm:"primaryKey;size:32"`
	Embedding   pgvector.Vector `gorm:"type:vector"`
	CreatedAt   time.Time
}

// Counter is a named monotonically increasing sequence.
type Counter struct {
	Name string `gorm:"primaryKey;size:32"`
	Seq  int64  `gorm:"not null;default:0"`
}

// ComplaintIDPrefix is prepended to every generated complaint id.
const ComplaintIDPrefix = "CS-"

// FormatComplaintID renders a sequence number as CS-000001.
func FormatComplaintID(seq int64) string {
	return fmt.Sprintf("%s%06d", ComplaintIDPrefix, seq)
}

// ParseComplaintSeq extracts the sequence number from a complaint id.
func ParseComplaintSeq(id string) (int64, bool) {
	if !strings.HasPrefix(id, ComplaintIDPrefix) {
		return 0, false
	}
	var n int64
	digits := id[len(ComplaintIDPrefix):]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	return n, true
}

// AnonymousID derives the public submitter label from an identity document
// number. Only its last four characters are kept.
func AnonymousID(identityDocument string) (string, error) {
	doc := []rune(strings.TrimSpace(identityDocument))
	if len(doc) < 4 {
		return "", fmt.Errorf("identity document must have at least 4 characters")
	}
	return "Unknown-" + string(doc[len(doc)-4:]), nil
}

// LastEntry returns the newest history entry, or nil for an empty history.
func (c *Complaint) LastEntry() *StatusEntry {
	if len(c.History) == 0 {
		return nil
	}
	return &c.History[len(c.History)-1]
}
