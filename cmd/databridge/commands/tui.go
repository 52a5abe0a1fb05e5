package commands

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marshallshelly/databridge/cmd/databridge/tui"
)

// tuiCmd starts the interactive editor
var tuiCmd = &cobra.Command{
	Use:   "tui [" + strings.Join(tui.Tabs, "|") + "]",
	Short: "Edit records interactively",
	Long: `Open the interactive editor with a tab per entity.

Tables list the records; forms create and edit them; deletes ask for
confirmation. Results and errors appear as notifications.

Keys:
  tab/←/→ switch entity   n new   e edit   d delete   r reload   q quit
  students: space select   D delete selected   u upload a spreadsheet

Logs are discarded unless --log-file is given.

Examples:
  databridge tui
  databridge tui students --log-file databridge.log`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: tui.Tabs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := tui.Tabs[0]
		if len(args) == 1 {
			start = args[0]
		}
		return runTUI(cmd, start)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, start string) error {
	err := tui.Run(cmd.Context(), tui.Options{
		Client:   api,
		Start:    start,
		Life:     cfg.Toast.Life.Std(),
		WarnLife: cfg.Toast.WarnLife.Std(),
		Logger:   logger.WithField("component", "tui"),
	})
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("editor UI failed: %w", err)
	}
	return nil
}
