package candidates

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/llamacloud"
	"github.com/ovoronin/resume-ranker/internal/matching"
)

const unknownCandidate = "Unknown Candidate"

// namePatterns try to pull a person's name out of résumé text when the
// file name gives nothing usable. Only the first 200 runes are scanned.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^([A-Z][a-z]+ [A-Z][a-z]+)`),
	regexp.MustCompile(`Name:?\s*([A-Z][a-z]+ [A-Z][a-z]+)`),
	regexp.MustCompile(`([A-Z][a-z]+ [A-Z][a-z]+)\s*\n`),
}

type retriever interface {
	Retrieve(ctx context.Context, query string, topK int, enableReranking bool) ([]llamacloud.RetrievalNode, error)
}

// IndexSource retrieves candidates from a LlamaCloud pipeline index.
type IndexSource struct {
	client retriever
	logger *zap.Logger
}

func NewIndexSource(client *llamacloud.Client, logger *zap.Logger) *IndexSource {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &IndexSource{client: client, logger: logger}
}

// Query retrieves up to topK résumé chunks, collapses chunks that come
// from the same file and returns records ordered by retrieval score.
func (s *IndexSource) Query(ctx context.Context, query string, topK int, enableReranking bool) ([]matching.CandidateRecord, error) {
	nodes, err := s.client.Retrieve(ctx, query, topK, enableReranking)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Score != nodes[j].Score {
			return nodes[i].Score > nodes[j].Score
		}
		return nodes[i].ID < nodes[j].ID
	})

	seenFiles := make(map[string]bool)
	records := make([]matching.CandidateRecord, 0, len(nodes))
	for _, node := range nodes {
		fileName := fileNameFromMetadata(node.Metadata)
		if fileName != "" {
			if seenFiles[fileName] {
				s.logger.Debug("skipping duplicate file", zap.String("file_name", fileName))
				continue
			}
			seenFiles[fileName] = true
		}

		records = append(records, matching.CandidateRecord{
			ID:             node.ID,
			Name:           deriveName(fileName, node.Text),
			FileName:       fileName,
			ResumeText:     node.Text,
			RetrievalScore: node.Score,
			Metadata:       node.Metadata,
		})
	}

	s.logger.Debug("candidates retrieved",
		zap.Int("nodes", len(nodes)),
		zap.Int("candidates", len(records)),
	)

	return records, nil
}

func fileNameFromMetadata(metadata map[string]any) string {
	for _, key := range []string{"file_name", "filename", "file_path"} {
		if value, ok := metadata[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

// deriveName prefers the file name ("Jane_Doe.pdf" -> "Jane Doe") and
// falls back to scanning the résumé text for a name-shaped line.
func deriveName(fileName, resumeText string) string {
	if fileName != "" {
		base := path.Base(fileName)
		if dot := strings.IndexByte(base, '.'); dot >= 0 {
			base = base[:dot]
		}
		base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
		base = strings.TrimSpace(base)
		if base != "" && !strings.HasPrefix(strings.ToLower(base), "resume") {
			return titleCase(base)
		}
	}

	head := resumeText
	if len(head) > 200 {
		head = head[:200]
	}
	for _, pattern := range namePatterns {
		if m := pattern.FindStringSubmatch(head); m != nil {
			return m[1]
		}
	}

	return unknownCandidate
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
