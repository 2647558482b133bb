package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/theirongolddev/plotlog/internal/cli"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/plot"
	"github.com/theirongolddev/plotlog/internal/tui"
	"github.com/theirongolddev/plotlog/internal/tui/theme"
)

var flagWatchPlain bool

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Follow a plot log live",
	Long: "Follow a growing plot log and show phase progress as it happens.\n" +
		"On a terminal this opens an interactive view; otherwise, or with\n" +
		"--plain, each event is printed as a line.",
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&flagWatchPlain, "plain", false, "Print events as lines instead of the interactive view")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireFile(args[0]); err != nil {
		return err
	}
	p := plot.New(args[0], plotOptions(cfg)...)

	if flagWatchPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return watchPlain(cmd, p)
	}

	theme.SetActive(cfg.Appearance.Theme)
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())

	app := tui.NewApp(cmd.Context(), p)
	prog := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	_, err = prog.Run()
	p.Stop()
	p.Wait()
	if err != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func watchPlain(cmd *cobra.Command, p *plot.Parser) error {
	p.Subscribe(func(ev model.Event) {
		switch ev.Kind {
		case model.KindParseEnd:
		case model.KindProgress:
			fmt.Printf("%-28s %s\n", cli.FormatEvent(ev), cli.RenderProgressBar(ev.Percent, 20))
		default:
			fmt.Println(cli.FormatEvent(ev))
		}
	})
	if err := p.Watch(cmd.Context()); err != nil {
		return err
	}
	p.Wait()

	if p.State() == model.StateErrored {
		return fmt.Errorf("%s: parse stopped on an error", p.Path())
	}
	return nil
}
