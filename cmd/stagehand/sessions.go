package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stagehand/internal/state"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent orchestration sessions",
	RunE:  listSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum sessions to show")
}

func listSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStateDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.ListSessions(sessionsLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	for _, s := range sessions {
		switch s.Status {
		case state.SessionCompleted:
			green.Printf("%-10s", s.Status)
		case state.SessionFailed, state.SessionAborted:
			red.Printf("%-10s", s.Status)
		default:
			fmt.Printf("%-10s", s.Status)
		}
		fmt.Printf(" %s  %s  %s/%s  tokens=%d/%d  %s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.Provider, s.Strategy, s.InputTokens, s.OutputTokens, s.Task)
	}
	return nil
}
