package candidates

import (
	"testing"

	"github.com/ovoronin/resume-ranker/internal/matching"
)

func TestBuildQuery(t *testing.T) {
	got := BuildQuery([]string{"Python", "AWS"}, []string{"Docker"})
	want := "Required skills and qualifications: Python, AWS " +
		"Preferred skills and experience: Docker " +
		"Relevant experience with: Python, AWS, Docker"
	if got != want {
		t.Fatalf("unexpected query:\n got %q\nwant %q", got, want)
	}
}

func TestBuildQueryRequiredOnly(t *testing.T) {
	got := BuildQuery([]string{"Go"}, nil)
	want := "Required skills and qualifications: Go Relevant experience with: Go"
	if got != want {
		t.Fatalf("unexpected query: %q", got)
	}
}

func TestBuildQueryEmpty(t *testing.T) {
	if got := BuildQuery(nil, nil); got != "" {
		t.Fatalf("expected empty query, got %q", got)
	}
}

func TestBuildJobQuery(t *testing.T) {
	job := &matching.JobRequirements{
		Title:                   "Backend Engineer",
		RequiredQualifications:  []string{"Go", "PostgreSQL"},
		PreferredQualifications: []string{"Kubernetes"},
		ExperienceLevel:         matching.ExperienceSenior,
	}

	got := BuildJobQuery(job)
	want := "Job Title: Backend Engineer " +
		"Required Qualifications: Go PostgreSQL " +
		"Preferred Qualifications: Kubernetes " +
		"Experience Level: senior"
	if got != want {
		t.Fatalf("unexpected query:\n got %q\nwant %q", got, want)
	}
}

func TestBuildJobQuerySkipsUnspecifiedLevel(t *testing.T) {
	job := &matching.JobRequirements{
		Title:                  "Backend Engineer",
		RequiredQualifications: []string{"Go"},
		ExperienceLevel:        matching.ExperienceUnspecified,
	}

	got := BuildJobQuery(job)
	want := "Job Title: Backend Engineer Required Qualifications: Go"
	if got != want {
		t.Fatalf("unexpected query: %q", got)
	}
}
