package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/shelfmark/pkg/dataset"
	"github.com/matzehuels/shelfmark/pkg/observability"
)

// ui is where status output goes. Exported data is written to the command's
// own writer instead.
var ui io.Writer = os.Stdout

// Palette.
var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
	StyleNumber    = lipgloss.NewStyle().Foreground(colorCyan)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleSuccess   = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(14)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)

	// Tier badges in fetch output.
	styleTier = map[observability.Tier]lipgloss.Style{
		observability.TierLocal:  lipgloss.NewStyle().Foreground(colorGreen),
		observability.TierShared: lipgloss.NewStyle().Foreground(colorCyan),
		observability.TierOrigin: lipgloss.NewStyle().Foreground(colorYellow),
	}
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconInfo    = "›"
	iconArrow   = "→"
)

func printLine(s string) { fmt.Fprintln(ui, s) }

func printSuccess(format string, args ...any) {
	printLine(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	printLine(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	printLine(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	printLine("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written file.
func printFile(path string) {
	printLine("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	printLine(styleKey.Render(key) + " " + StyleValue.Render(value))
}

// printNextStep prints a suggested follow-up command.
func printNextStep(description, cmd string) {
	printLine(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

func printNewline() { printLine("") }

// printLoaded prints one line per loaded table:
//
//	✓ books       12034 rows · shared · 1.2s
func printLoaded(kind dataset.Kind, rows int, tier observability.Tier, took time.Duration) {
	badge := "memoized"
	if style, ok := styleTier[tier]; ok {
		badge = style.Render(string(tier))
	}
	parts := []string{fmt.Sprintf("%d rows", rows), badge, took.String()}
	printLine(styleIconSuccess.Render(iconSuccess) + " " +
		StyleValue.Render(fmt.Sprintf("%-11s", kind)) + " " +
		StyleDim.Render(strings.Join(parts, " · ")))
}

// printSummary prints catalog statistics.
func printSummary(s dataset.Summary) {
	printNewline()
	printLine(StyleTitle.Render("Catalog"))
	printKeyValue("Books", StyleNumber.Render(fmt.Sprint(s.Books)))
	printKeyValue("Categories", StyleNumber.Render(fmt.Sprint(s.Categories)))
	printKeyValue("Stores", StyleNumber.Render(fmt.Sprint(s.Stores)))
	printKeyValue("Avg price", fmt.Sprintf("%.0f", s.AveragePrice))
	printKeyValue("Discounted", fmt.Sprintf("%d (%.1f%%, avg %.1f%% off)", s.Discounted, 100*s.DiscountedRatio, s.AverageDiscount))
	printKeyValue("Out of stock", fmt.Sprintf("%d (%.1f%%)", s.OutOfStock, 100*s.OutOfStockRatio))
	printKeyValue("Described", fmt.Sprint(s.Descriptions))

	printCounts("By category", s.BooksByTopCategory)
	printCounts("Top authors", s.TopAuthors)
	printCounts("Languages", s.Languages)
	printCounts("Store types", s.StoresByType)
}

func printCounts(title string, counts []dataset.Count) {
	if len(counts) == 0 {
		return
	}
	printNewline()
	printLine(StyleHighlight.Render(title))
	for _, c := range counts {
		printKeyValue(c.Label, StyleNumber.Render(fmt.Sprint(c.Count)))
	}
}
