package candidates

import (
	"context"
	"sort"
	"strings"

	"github.com/ovoronin/resume-ranker/internal/matching"
)

// MockSource serves a fixed set of fixture résumés, scored by the
// fraction of query terms each résumé mentions. It is fully
// deterministic: same query, same records, same order.
type MockSource struct{}

func NewMockSource() *MockSource {
	return &MockSource{}
}

// Query scores the fixtures against the query terms and returns the
// ones with at least one matching term, best first. The reranking flag
// is accepted for interface compatibility and ignored.
func (s *MockSource) Query(_ context.Context, query string, topK int, _ bool) ([]matching.CandidateRecord, error) {
	terms := queryTerms(query)

	records := make([]matching.CandidateRecord, 0, len(mockResumes))
	for _, fixture := range mockResumes {
		score := overlapScore(terms, fixture.resume)
		if score == 0 {
			continue
		}
		records = append(records, matching.CandidateRecord{
			ID:             fixture.id,
			Name:           fixture.name,
			FileName:       fixture.fileName,
			ResumeText:     fixture.resume,
			RetrievalScore: score,
			Metadata:       map[string]any{"source": "mock"},
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].RetrievalScore != records[j].RetrievalScore {
			return records[i].RetrievalScore > records[j].RetrievalScore
		}
		return records[i].ID < records[j].ID
	})

	if topK > 0 && len(records) > topK {
		records = records[:topK]
	}

	return records, nil
}

// queryTerms lowercases and splits the query, dropping punctuation but
// keeping '+' and '#' so terms like "c++" and "c#" survive.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '#':
			return false
		}
		return true
	})

	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 2 || seen[field] {
			continue
		}
		seen[field] = true
		terms = append(terms, field)
	}

	return terms
}

func overlapScore(terms []string, resume string) float64 {
	if len(terms) == 0 {
		return 0
	}

	lowered := strings.ToLower(resume)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			matched++
		}
	}

	return float64(matched) / float64(len(terms))
}

type mockResume struct {
	id       string
	name     string
	fileName string
	resume   string
}

var mockResumes = []mockResume{
	{
		id:       "mock-001",
		name:     "Alice Chen",
		fileName: "Alice_Chen.pdf",
		resume: `Alice Chen
Senior Software Engineer

Eight years building backend services in Python and Go. Designed and
operated REST APIs on AWS (EC2, Lambda, S3, RDS) serving millions of
requests per day. Led the migration of a monolith to containerized
microservices with Docker and Kubernetes. Mentored a team of four
engineers and ran the on-call rotation.

Skills: Python, Go, AWS, Docker, Kubernetes, PostgreSQL, Terraform`,
	},
	{
		id:       "mock-002",
		name:     "Brian Okafor",
		fileName: "Brian_Okafor.pdf",
		resume: `Brian Okafor
Full Stack Developer

Five years of experience with React, TypeScript and Node.js. Built
customer-facing dashboards and internal tooling. Comfortable with SQL
databases and CI/CD pipelines on GitLab. Some exposure to Python for
data scripts.

Skills: JavaScript, TypeScript, React, Node.js, SQL, Python`,
	},
	{
		id:       "mock-003",
		name:     "Carla Mendes",
		fileName: "Carla_Mendes.pdf",
		resume: `Carla Mendes
Data Engineer

Built batch and streaming pipelines with Python, Spark and Kafka.
Modeled warehouses on Snowflake and BigQuery. Wrote orchestration DAGs
in Airflow and maintained dbt models. Strong SQL.

Skills: Python, Spark, Kafka, Airflow, dbt, SQL, GCP`,
	},
	{
		id:       "mock-004",
		name:     "Deepak Rao",
		fileName: "Deepak_Rao.pdf",
		resume: `Deepak Rao
DevOps Engineer

Automated infrastructure with Terraform and Ansible across AWS and
Azure. Ran Kubernetes clusters in production, built Prometheus and
Grafana monitoring, and cut deploy times with GitHub Actions
pipelines. Scripting in Bash and Go.

Skills: Terraform, Ansible, AWS, Azure, Kubernetes, Prometheus, Go`,
	},
	{
		id:       "mock-005",
		name:     "Elena Volkova",
		fileName: "Elena_Volkova.pdf",
		resume: `Elena Volkova
Machine Learning Engineer

Trained and deployed NLP models with PyTorch and Hugging Face
transformers. Served models behind FastAPI on Kubernetes. Experience
with experiment tracking, feature stores and model monitoring. Solid
Python and C++ background.

Skills: Python, PyTorch, NLP, FastAPI, Kubernetes, C++`,
	},
	{
		id:       "mock-006",
		name:     "Frank Miller",
		fileName: "Frank_Miller.pdf",
		resume: `Frank Miller
Engineering Manager

Twelve years in software, the last five managing backend teams of up
to ten engineers. Hands-on with Java and Spring earlier in his career.
Drove hiring, quarterly planning and cross-team architecture reviews.

Skills: leadership, hiring, Java, Spring, architecture, agile`,
	},
}
