package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/uivar/uivar/internal/metadata"
	"github.com/uivar/uivar/internal/variant"
)

var (
	statusWatch   bool
	statusHistory int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the project's variants",
	Long: `Show every variant of the current project: id, branch, status, and
port.

With --watch, re-render whenever the metadata file changes, so
variants started or removed by another uivar process show up live.
With --history, also print the most recent lifecycle events.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Re-render on metadata changes")
	statusCmd.Flags().IntVar(&statusHistory, "history", 0, "Show the N most recent lifecycle events")
}

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusTitleStyle  = lipgloss.NewStyle().Bold(true)
	statusDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	statusCellStyles = map[metadata.VariantStatus]lipgloss.Style{
		metadata.StatusRunning:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		metadata.StatusCreated:    lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		metadata.StatusStopped:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		metadata.StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		metadata.StatusAllocating: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	}
)

func runStatus(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := renderStatus(mgr); err != nil {
		return err
	}

	if statusHistory > 0 {
		if err := renderHistory(mgr); err != nil {
			return err
		}
	}

	if !statusWatch {
		return nil
	}
	return watchStatus(mgr)
}

func renderStatus(mgr *variant.Manager) error {
	status, err := mgr.Status()
	if err != nil {
		return fmt.Errorf("read project status: %w", err)
	}

	fmt.Println(statusTitleStyle.Render(status.Project.ProjectName))
	if status.Project.OriginURL != "" {
		fmt.Println(statusDimStyle.Render(status.Project.OriginURL))
	}

	if len(status.Project.Variants) == 0 {
		fmt.Println("No variants. Run 'uivar create' to make one.")
		return nil
	}

	// Live server info from this instance overrides the mirrored status.
	live := make(map[string]string)
	for _, s := range status.Servers {
		live[s.VariantID] = string(s.Status)
	}

	rows := [][]string{{"ID", "STATUS", "BRANCH", "PORT", "UPDATED"}}
	for _, v := range status.Project.Variants {
		st := string(v.Status)
		if l, ok := live[v.ID]; ok {
			st = l
		}
		port := "-"
		if v.Port != 0 {
			port = fmt.Sprintf("%d", v.Port)
		}
		rows = append(rows, []string{
			v.ID, st, v.Branch, port, v.LastUpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	fmt.Println(renderTable(rows))

	for _, v := range status.Project.Variants {
		if v.Status == metadata.StatusFailed && v.Error != "" {
			errorColor.Printf("  %s: %s\n", v.ID, v.Error)
		}
	}
	return nil
}

// renderTable pads each column to its widest cell and styles the header
// row and status cells.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for r, row := range rows {
		var cells []string
		for i, cell := range row {
			padded := cell + strings.Repeat(" ", widths[i]-len(cell))
			if r == 0 {
				padded = statusHeaderStyle.Render(padded)
			} else if i == 1 {
				if style, ok := statusCellStyles[metadata.VariantStatus(cell)]; ok {
					padded = style.Render(padded)
				}
			}
			cells = append(cells, padded)
		}
		b.WriteString("  " + strings.Join(cells, "  "))
		if r < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderHistory(mgr *variant.Manager) error {
	j := mgr.Journal()
	if j == nil {
		warnColor.Println("History unavailable (journal could not be opened)")
		return nil
	}

	entries, err := j.ListRecent(statusHistory)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println(statusTitleStyle.Render("Recent events"))
	for _, e := range entries {
		detail := ""
		if e.Detail != "" {
			detail = "  " + statusDimStyle.Render(e.Detail)
		}
		fmt.Printf("  %s  %s  %s%s\n",
			e.CreatedAt.Local().Format("15:04:05"), e.VariantID, e.Event, detail)
	}
	return nil
}

// watchStatus re-renders on metadata file changes until interrupted.
// Watching the directory instead of the file survives the atomic
// rename that replaces the metadata file on every write.
func watchStatus(mgr *variant.Manager) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	metaPath := mgr.MetadataPath()
	dir := filepath.Dir(metaPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	fmt.Println()
	statusDimOut("Watching for changes (Ctrl-C to exit)...")

	// Debounce: a single logical update produces several fs events.
	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) == filepath.Base(metaPath) {
				pending = time.After(200 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			warnColor.Printf("watch error: %v\n", err)
		case <-pending:
			pending = nil
			fmt.Print("\033[2J\033[H")
			if err := renderStatus(mgr); err != nil {
				return err
			}
			if statusHistory > 0 {
				if err := renderHistory(mgr); err != nil {
					return err
				}
			}
			fmt.Println()
			statusDimOut("Watching for changes (Ctrl-C to exit)...")
		}
	}
}

func statusDimOut(s string) {
	fmt.Println(statusDimStyle.Render(s))
}
