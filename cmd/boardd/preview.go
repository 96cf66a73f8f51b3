package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"departure-board-backend/config"
	"departure-board-backend/internal/board"
	"departure-board-backend/internal/poller"
)

var previewFile string

var previewCmd = &cobra.Command{
	Use:   "preview <route-id>",
	Short: "Fetch a route's board and print it to the terminal",
	Long: `preview builds the board for one configured route and prints it with
the same colouring the classic image uses. With --file it prints an
existing board text file instead and no route id is needed.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if previewFile != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc board.Document
		if previewFile != "" {
			raw, err := os.ReadFile(previewFile)
			if err != nil {
				return err
			}
			doc = board.Document(raw)
		} else {
			var err error
			doc, err = fetchPreview(cmd.Context(), configPath, args[0])
			if err != nil {
				return err
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), Styled(doc))
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewFile, "file", "f", "", "print this board text file instead of fetching")
}

func fetchPreview(ctx context.Context, path, routeID string) (board.Document, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	var rc *config.RouteConfig
	for i := range cfg.Routes {
		if strings.EqualFold(cfg.Routes[i].ID, routeID) {
			rc = &cfg.Routes[i]
			break
		}
	}
	if rc == nil {
		return "", fmt.Errorf("route %q is not configured", routeID)
	}

	logger := log.New(os.Stderr, "boardd ", log.LstdFlags)
	dir := loadStations(cfg.StationsFile, log.New(os.Stderr, "", 0))
	route := poller.ResolveRoute(dir, *rc)
	client := newDarwinClient(cfg.Darwin, logger)

	b, err := client.FetchBoard(ctx, route.StationCRS, route.DestinationCRS, cfg.Board.MaxServices)
	if err != nil {
		return "", err
	}
	return poller.Compile(ctx, client, b, cfg, *rc, route, time.Now, logger).Doc, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0FF")).Bold(true)
	statsStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	issueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0FF")).Underline(true)
	serviceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	callingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).Italic(true)
)

// Styled colours each line of doc by its kind.
func Styled(doc board.Document) string {
	var b strings.Builder
	for _, l := range doc.Lines() {
		var style lipgloss.Style
		switch l.Kind {
		case board.KindRoute, board.KindTitle:
			style = titleStyle
		case board.KindStats:
			style = statsStyle
		case board.KindNotice, board.KindNoDepartures, board.KindStatus:
			style = issueStyle
		case board.KindHeader:
			style = headerStyle
		case board.KindService:
			style = serviceStyle
		case board.KindCallingPoint:
			style = callingStyle
		default:
			b.WriteString(l.Text + "\n")
			continue
		}
		b.WriteString(style.Render(l.Text) + "\n")
	}
	return b.String()
}
