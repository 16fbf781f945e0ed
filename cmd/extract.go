package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract structured job requirements from a job description",
	Long: "Extract structured job requirements from a job description. " +
		"The text is read from the given file, or from stdin when no file is provided.",
	Args: cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runExtract(args)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	service, timeout, err := newService(ctx, logger)
	if err != nil {
		logger.Fatal("building the service", zap.Error(err))
	}

	jdText, err := readInput(args)
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := service.ExtractJobRequirements(ctx, jdText)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
	}

	fmt.Println(payload)
}

// readInput returns the contents of the file named by the first
// argument, or everything from stdin when no argument is given.
func readInput(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
