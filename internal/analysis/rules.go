package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"civicshield/backend/internal/config"
	"civicshield/backend/internal/models"
)

var (
	spamTokens       = regexp.MustCompile(`(?i)test|asdf|qwerty|xxx|spam|fake`)
	abusiveWords     = regexp.MustCompile(`(?i)\b(stupid|idiot|fool|damn|hell)\b`)
	criticalKeywords = regexp.MustCompile(`(?i)emergency|danger|life.?threatening|death|accident|collapse|fire`)
	highKeywords     = regexp.MustCompile(`(?i)urgent|immediate|hazard|flooding|sewage|electric`)
)

const (
	verdictValid   = "Complaint appears valid and has been verified for processing."
	verdictFlagged = "Complaint flagged for review due to quality issues."
)

// RuleBased scores a complaint without any external call. The result only
// depends on the input.
func RuleBased(department, heading, description string) Verdict {
	score := config.RuleBaseScore
	valid := true
	severity := models.SeverityMedium
	flags := []string{}

	if utf8.RuneCountInString(description) < config.RuleShortDescription {
		flags = append(flags, "Description too short")
		score -= config.RuleShortDescPenalty
		valid = false
	}
	if utf8.RuneCountInString(heading) < config.RuleShortHeading {
		flags = append(flags, "Heading too short")
		score -= config.RuleShortHeadPenalty
	}
	if looksLikeSpam(description) || looksLikeSpam(heading) {
		flags = append(flags, "Potential spam content detected")
		score -= config.RuleSpamPenalty
		valid = false
	}
	if abusiveWords.MatchString(description) {
		flags = append(flags, "Potentially inappropriate language")
		score -= config.RuleAbusivePenalty
	}

	switch {
	case criticalKeywords.MatchString(description):
		severity = models.SeverityCritical
		score += config.RuleCriticalBonus
	case highKeywords.MatchString(description):
		severity = models.SeverityHigh
		score += config.RuleHighBonus
	}

	score = clamp(score, 0, 100)
	valid = valid && score >= config.RuleValidityThreshold

	verdict := verdictFlagged
	if valid {
		verdict = verdictValid
	}
	return Verdict{
		IsValid:  valid,
		Score:    score,
		Verdict:  verdict,
		Flags:    flags,
		Category: department,
		Severity: severity,
		Source:   SourceRules,
	}
}

func looksLikeSpam(s string) bool {
	return spamTokens.MatchString(s) || hasRepeatedRun(s, config.SpamRepeatedCharLength)
}

// hasRepeatedRun reports whether s contains n identical consecutive
// characters on one line.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == '\n' {
			run = 0
			continue
		}
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// ApplyDuplicate overrides a verdict that matched an earlier complaint: it
// is never valid and its score is capped.
func ApplyDuplicate(v *Verdict) {
	if !v.IsDuplicate {
		return
	}
	v.IsValid = false
	if v.Score > config.DuplicateScoreCap {
		v.Score = config.DuplicateScoreCap
	}
	flag := "Duplicate of an existing complaint"
	if v.DuplicateOf != "" {
		flag = fmt.Sprintf("Duplicate of complaint %s", v.DuplicateOf)
	}
	for _, f := range v.Flags {
		if strings.EqualFold(f, flag) {
			return
		}
	}
	v.Flags = append(v.Flags, flag)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
