package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/logger"
	"github.com/ovoronin/resume-ranker/internal/matching"
	"github.com/ovoronin/resume-ranker/internal/ranker"
)

const (
	PromptReport        = "Report by candidates"
	PromptResultsToFile = "Dump results to file"
	PromptExit          = "Exit"
)

var errExit = errors.New("exit requested")

var rankPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReport, PromptResultsToFile, PromptExit},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank indexed candidates against a job description or qualification lists",
	Long: "Rank indexed candidates against a job description or qualification lists. " +
		"When --required/--preferred are not set, the job description is read from --file " +
		"(or stdin) and the qualification lists are extracted from it first.",
	Run: func(cmd *cobra.Command, _ []string) {
		runRank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("file", "f", "", "file with the job description text")
	rankCmd.Flags().StringP("required", "r", "", "comma-separated required qualifications")
	rankCmd.Flags().StringP("preferred", "p", "", "comma-separated preferred qualifications")
	rankCmd.Flags().IntP("top-k", "k", 10, "maximum number of candidates to return")
	rankCmd.Flags().Bool("rerank", false, "enable reranking of retrieval results")
	rankCmd.Flags().BoolP("auto-approve", "y", false, "print the result and exit without the action prompt")
}

func runRank(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	logger.Info("starting the resume-ranker", zap.String("version", version))

	service, timeout, err := newService(ctx, logger)
	if err != nil {
		logger.Fatal("building the service", zap.Error(err))
	}

	requiredCSV, _ := cmd.Flags().GetString("required")
	preferredCSV, _ := cmd.Flags().GetString("preferred")
	topK, _ := cmd.Flags().GetInt("top-k")
	rerank, _ := cmd.Flags().GetBool("rerank")

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if strings.TrimSpace(requiredCSV) == "" && strings.TrimSpace(preferredCSV) == "" {
		requiredCSV, preferredCSV = extractLists(opCtx, cmd, service, logger)
	}

	logger.Info("ranking candidates",
		zap.Int("top_k", topK),
		zap.Bool("rerank", rerank),
	)

	payload, err := service.FindMatchingCandidates(opCtx, requiredCSV, preferredCSV, topK, rerank)
	if err != nil {
		fmt.Println(payload)
		logger.Fatal("ranking failed", zap.Error(err))
	}

	fmt.Println(payload)

	if auto, _ := cmd.Flags().GetBool("auto-approve"); auto {
		return
	}

	for {
		_, action, err := rankPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleRankAction(action, payload, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// extractLists reads the job description and extracts the
// qualification lists from it via the Judge.
func extractLists(ctx context.Context, cmd *cobra.Command, service extractService, logger *zap.Logger) (string, string) {
	file, _ := cmd.Flags().GetString("file")

	var args []string
	if file != "" {
		args = append(args, file)
	}

	jdText, err := readInput(args)
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}

	payload, err := service.ExtractJobRequirements(ctx, jdText)
	if err != nil {
		logger.Fatal("extracting job requirements", zap.Error(err))
	}

	var job matching.JobRequirements
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		logger.Fatal("decoding job requirements", zap.Error(err))
	}

	logger.Info("extracted job requirements",
		zap.String("title", job.Title),
		zap.Int("required", len(job.RequiredQualifications)),
		zap.Int("preferred", len(job.PreferredQualifications)),
	)

	return strings.Join(job.RequiredQualifications, ", "), strings.Join(job.PreferredQualifications, ", ")
}

type extractService interface {
	ExtractJobRequirements(ctx context.Context, jdText string) (string, error)
}

func handleRankAction(action, payload string, logger *zap.Logger) error {
	switch action {
	case PromptReport:
		return printReport(payload)
	case PromptResultsToFile:
		filename, err := dumpToTmpFile(payload)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumped results to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// printReport renders a one-line-per-candidate summary of the ranking
// payload.
func printReport(payload string) error {
	var response struct {
		TotalCandidates  int `json:"total_candidates"`
		SearchParameters struct {
			Exclusions []ranker.Exclusion `json:"exclusions"`
		} `json:"search_parameters"`
		Candidates []matching.CandidateAssessment `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(payload), &response); err != nil {
		return fmt.Errorf("decode results: %w", err)
	}

	fmt.Printf("%d candidate(s):\n", response.TotalCandidates)
	for i, candidate := range response.Candidates {
		name := candidate.CandidateName
		if name == "" {
			name = candidate.CandidateID
		}
		fmt.Printf("%2d. %s: %.2f%% (weighted %.1f of %.1f, retrieval %.3f)\n",
			i+1, name, candidate.MatchPercentage,
			candidate.WeightedScore, candidate.MaxPossibleScore,
			candidate.RetrievalScore,
		)
	}
	for _, exclusion := range response.SearchParameters.Exclusions {
		fmt.Printf("excluded: %s (%s)\n", exclusion.CandidateID, exclusion.Reason)
	}

	return nil
}

func dumpToTmpFile(payload string) (string, error) {
	file, err := os.CreateTemp("", app+"-results-*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.WriteString(payload); err != nil {
		return "", err
	}

	return file.Name(), nil
}
