package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/backmassage/framevault/internal/term"
)

const bannerArt = `  __                              _ _
 / _|_ __ __ _ _ __ ___   _____ _| | |_
| |_| '__/ _` + "`" + ` | '_ ` + "`" + ` _ \ / _ \ \ / / _` + "`" + ` | | __|
|  _| | | (_| | | | | | |  __/\ V / (_| | | |_
|_| |_|  \__,_|_| |_| |_|\___| \_/ \__,_|_|\__|`

var bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))

// PrintBanner writes the banner and version line to w, colored when the
// terminal allows it.
func PrintBanner(w io.Writer, version string) {
	art := bannerArt
	if term.Enabled() {
		art = bannerStyle.Render(art)
	}
	fmt.Fprintln(w, art)
	fmt.Fprintf(w, "framevault %s\n\n", version)
}
