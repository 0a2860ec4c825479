package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stewardbot/steward/internal/config"
)

var (
	askSpecialization string
	askTranscript     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [query...]",
	Short: "Run one query through the loop and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVarP(&askSpecialization, "specialization", "s", "", "persona to answer as (default: general)")
	askCmd.Flags().BoolVar(&askTranscript, "transcript", false, "print the full transcript, not just the answer")
}

func runAsk(ctx context.Context, query string) error {
	cfg := config.New(dataDirFlag)
	log := setupLogging(cfg.LogLevel)

	if ctx == nil {
		ctx = context.Background()
	}

	loop, db, err := buildLoop(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	result := loop.Run(ctx, query, askSpecialization)
	if askTranscript {
		for _, e := range result.Transcript {
			fmt.Printf("[%s]\n%s\n\n", e.Role, e.Content)
		}
		return nil
	}
	fmt.Println(result.Answer)
	return nil
}
