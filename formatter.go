package harness

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// ResultFormatter is responsible for formatting and displaying batch results.
type ResultFormatter interface {
	FormatResults(result *runner.BatchResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger log.Logger
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
	}
}

// FormatResults formats and displays the batch results.
func (f *ConsoleResultFormatter) FormatResults(result *runner.BatchResult) error {
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Harness Run Results (%s)", formatDuration(result.Duration)))

	// Configure columns
	t.AppendHeader(table.Row{
		"Suite", "Runnable", "Duration", "Passed", "Failed", "Skipped", "Retries", "Status", "Error",
	})

	// Set column configurations for better readability
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Suite", AutoMerge: true},
		{Name: "Runnable", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Retries", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, res := range result.Results {
		errText := ""
		if res.Error != nil {
			errText = stripansi.Strip(res.Error.Error())
		}

		title := res.Title
		if res.Slow {
			title = fmt.Sprintf("%s (slow)", title)
		}

		t.AppendRow(table.Row{
			suiteLabel(res),
			title,
			formatDuration(res.Duration),
			boolToInt(res.Status == types.RunStatusPass),
			boolToInt(res.Status == types.RunStatusFail),
			boolToInt(res.Status == types.RunStatusSkip),
			res.Retries,
			getResultString(res.Status),
			errText,
		})
	}

	// Update the table style setting based on result status
	if result.Status == types.RunStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else if result.Status == types.RunStatusSkip {
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	// Add summary footer
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Skipped,
		"",
		getResultString(result.Status),
		"",
	})

	t.Render()

	fmt.Println(result.String())

	return nil
}

// suiteLabel renders the enclosing suite path of a result, or "-" for
// runnables registered at the root.
func suiteLabel(res *types.RunResult) string {
	if len(res.TitlePath) < 2 {
		return "-"
	}
	return strings.Join(res.TitlePath[:len(res.TitlePath)-1], " > ")
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
