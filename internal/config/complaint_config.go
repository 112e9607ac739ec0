package config

import "time"

const (
	// Rule-based verdict
	RuleBaseScore          = 70
	RuleShortDescription   = 20
	RuleShortHeading       = 5
	RuleShortDescPenalty   = 30
	RuleShortHeadPenalty   = 20
	RuleSpamPenalty        = 40
	RuleAbusivePenalty     = 15
	RuleCriticalBonus      = 10
	RuleHighBonus          = 5
	RuleValidityThreshold  = 40
	DuplicateScoreCap      = 30
	SpamRepeatedCharLength = 6

	// Similarity search
	SimilarityThreshold = 0.60
	SimilarityTopK      = 3
	ExcerptLength       = 200

	// Corpus index
	IDFCacheTTL        = 60 * time.Second
	VocabularySize     = 1000
	ColdStartDimension = 128
	BackfillBatchSize  = 50

	// Extraction
	ExtractedTextLimit = 1500

	// Escalation
	EscalationBusinessDays = 6
	EscalationInterval     = time.Hour

	// External verdict service
	VerdictMaxRetries = 3
	VerdictBaseDelay  = 3 * time.Second
)

// Departments are the complaint routing targets known out of the box. The
// YAML directory file may extend them.
var Departments = []string{
	"municipal",
	"publicworks",
	"revenue",
	"health",
	"education",
	"transport",
	"police",
	"electricity",
	"water",
	"environment",
}

// AdminVisibleStatuses are the statuses shown on the admin dashboard.
var AdminVisibleStatuses = []string{"sent_to_admin", "admin_approved", "admin_rejected"}

// AuthorityVisibleStatuses are the statuses shown to authorities.
var AuthorityVisibleStatuses = []string{
	"sent_to_authority",
	"replied",
	"user_resolved",
	"user_not_resolved",
	"escalated",
	"lawsuit_filed",
}
