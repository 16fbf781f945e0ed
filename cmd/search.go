package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/logger"
)

var searchCmd = &cobra.Command{
	Use:   "search <skill> [skill...]",
	Short: "Search indexed candidates by skills",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntP("top-k", "k", 10, "maximum number of candidates to return")
}

func runSearch(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	service, timeout, err := newService(ctx, logger)
	if err != nil {
		logger.Fatal("building the service", zap.Error(err))
	}

	topK, _ := cmd.Flags().GetInt("top-k")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := service.SearchCandidatesBySkills(ctx, strings.Join(args, ", "), topK)
	if err != nil {
		logger.Error("search failed", zap.Error(err))
	}

	fmt.Println(payload)
}
