// Package candidates provides sources of candidate résumés for
// assessment: a LlamaCloud-backed retrieval source and a deterministic
// in-memory source used as a fallback and in tests.
package candidates

import (
	"context"
	"strings"

	"github.com/ovoronin/resume-ranker/internal/matching"
)

// Source yields candidate records relevant to a free-text query.
type Source interface {
	Query(ctx context.Context, query string, topK int, enableReranking bool) ([]matching.CandidateRecord, error)
}

// BuildQuery assembles a retrieval query from qualification lists. The
// combined trailing clause broadens recall over the individual lists.
func BuildQuery(required, preferred []string) string {
	var parts []string

	if len(required) > 0 {
		parts = append(parts, "Required skills and qualifications: "+strings.Join(required, ", "))
	}
	if len(preferred) > 0 {
		parts = append(parts, "Preferred skills and experience: "+strings.Join(preferred, ", "))
	}

	all := make([]string, 0, len(required)+len(preferred))
	all = append(all, required...)
	all = append(all, preferred...)
	if len(all) > 0 {
		parts = append(parts, "Relevant experience with: "+strings.Join(all, ", "))
	}

	return strings.Join(parts, " ")
}

// BuildJobQuery assembles a retrieval query from full job requirements,
// including the title and experience level when present.
func BuildJobQuery(job *matching.JobRequirements) string {
	var parts []string

	if job.Title != "" {
		parts = append(parts, "Job Title: "+job.Title)
	}
	if len(job.RequiredQualifications) > 0 {
		parts = append(parts, "Required Qualifications: "+strings.Join(job.RequiredQualifications, " "))
	}
	if len(job.PreferredQualifications) > 0 {
		parts = append(parts, "Preferred Qualifications: "+strings.Join(job.PreferredQualifications, " "))
	}
	if job.ExperienceLevel != "" && job.ExperienceLevel != matching.ExperienceUnspecified {
		parts = append(parts, "Experience Level: "+job.ExperienceLevel)
	}

	return strings.Join(parts, " ")
}
