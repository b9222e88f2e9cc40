package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/studyplanner/core/cmd/api/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "studyplanner",
		Short: "StudyPlanner API Server",
		Long:  `StudyPlanner keeps tasks, subjects, events, assessments and a weekly timetable in a small JSON document store and turns open tasks into a day-by-day study plan.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewPlanCommand())
	rootCmd.AddCommand(commands.NewCollectionsCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
