package slots

import (
	"regexp"
	"strings"
)

var (
	jobSplitPattern = regexp.MustCompile(`(?i)\n|;|\balso\b|\banother\b|,\s*and\b|\band\b`)
	remoteAfter     = regexp.MustCompile(`(?i)^\s*remote\b`)
)

// minJobPiece is the shortest fragment treated as its own job description;
// shorter fragments are glued to their neighbours.
const minJobPiece = 8

// Job is one role found in a message that describes several.
type Job struct {
	Text  string `json:"text"`
	Slots Slots  `json:"slots"`
}

// ExtractJobs splits a message describing several roles and extracts each one.
// Fragments that yield no role, location, budget, stack or seniority are dropped.
func (e *Extractor) ExtractJobs(text string) []Job {
	var jobs []Job
	for _, chunk := range splitJobs(text) {
		s := e.Extract(chunk)
		if s.Has(KeyRoleTitle) || s.Has(KeyLocation) || s.Has(KeyBudget) || s.Has(KeyStack) || s.Has(KeySeniority) {
			jobs = append(jobs, Job{Text: chunk, Slots: s})
		}
	}
	return jobs
}

// ExtractJobs splits and extracts with the default extractor.
func ExtractJobs(text string) []Job {
	return defaultExtractor.ExtractJobs(text)
}

func splitJobs(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var parts []string
	last := 0
	for _, loc := range jobSplitPattern.FindAllStringIndex(text, -1) {
		sep := strings.ToLower(text[loc[0]:loc[1]])
		// "python dev and remote" keeps its location.
		if sep == "and" && remoteAfter.MatchString(text[loc[1]:]) {
			continue
		}
		parts = append(parts, text[last:loc[0]])
		last = loc[1]
	}
	parts = append(parts, text[last:])

	var glued []string
	var buf string
	for _, p := range parts {
		p = strings.Trim(p, " \t\r.;,-")
		if p == "" {
			continue
		}
		if len(p) < minJobPiece {
			buf = strings.TrimSpace(buf + " " + p)
			continue
		}
		if buf != "" {
			glued = append(glued, buf)
			buf = ""
		}
		glued = append(glued, p)
	}
	if buf != "" {
		glued = append(glued, buf)
	}
	return glued
}
