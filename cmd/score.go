package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/logger"
)

var scoreCmd = &cobra.Command{
	Use:   "score <resume-file>",
	Short: "Score a single résumé against qualification lists",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runScore(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringP("required", "r", "", "comma-separated required qualifications")
	scoreCmd.Flags().StringP("preferred", "p", "", "comma-separated preferred qualifications")
	scoreCmd.Flags().String("title", "", "job title, adds context to the evaluation")
	scoreCmd.Flags().String("description", "", "short job description, adds context to the evaluation")

	scoreCmd.MarkFlagRequired("required")
}

func runScore(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	service, timeout, err := newService(ctx, logger)
	if err != nil {
		logger.Fatal("building the service", zap.Error(err))
	}

	resume, err := os.ReadFile(args[0])
	if err != nil {
		logger.Fatal("reading résumé file", zap.Error(err))
	}

	requiredCSV, _ := cmd.Flags().GetString("required")
	preferredCSV, _ := cmd.Flags().GetString("preferred")
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := service.ScoreCandidateQualifications(ctx, string(resume), requiredCSV, preferredCSV, title, description)
	if err != nil {
		logger.Error("scoring failed", zap.Error(err))
	}

	fmt.Println(payload)
}
