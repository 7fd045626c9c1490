package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"github.com/muurk/wsclient/internal/capture"
	"github.com/muurk/wsclient/internal/ui"
)

// Capture command flags
var (
	captureShowDB    string
	captureShowURL   string
	captureShowJSON  bool
	captureShowLimit int
)

// previewChars bounds the payload column of the capture table.
const previewChars = 48

func init() {
	captureShowCmd.Flags().StringVar(&captureShowDB, "db", "", "Read from a SQLite capture database instead of a JSON Lines file")
	captureShowCmd.Flags().StringVar(&captureShowURL, "url", "", "With --db, only show frames exchanged with this URL")
	captureShowCmd.Flags().BoolVar(&captureShowJSON, "json", false, "Print records as JSON Lines")
	captureShowCmd.Flags().IntVar(&captureShowLimit, "limit", 0, "Show at most this many frames (0 shows all)")

	captureCmd.AddCommand(captureShowCmd)
	rootCmd.AddCommand(captureCmd)
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Inspect captured frames",
	Long: `Frames are captured by connect and send with --capture-dir (one JSON
Lines file per session) or --capture-db (a SQLite database shared by
sessions).`,
}

var captureShowCmd = &cobra.Command{
	Use:   "show [file.jsonl]",
	Short: "Print captured frames",
	Example: `  wsclient capture show ./captures/capture_20250301_120000.jsonl
  wsclient capture show --db frames.db --url ws://localhost:8080/echo
  wsclient capture show --db frames.db --json | jq .payload_ascii`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCaptureShow,
}

func runCaptureShow(cmd *cobra.Command, args []string) error {
	records, err := loadRecords(args)
	if err != nil {
		return err
	}
	if captureShowLimit > 0 && len(records) > captureShowLimit {
		records = records[:captureShowLimit]
	}

	if captureShowJSON {
		out := cmd.OutOrStdout()
		for _, r := range records {
			line, err := sonnet.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode record %d: %w", r.Seq, err)
			}
			if _, err := fmt.Fprintln(out, string(line)); err != nil {
				return err
			}
		}
		return nil
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if len(records) == 0 {
		p.PrintNotice("no frames captured")
		return nil
	}
	p.PrintTable([]string{"SEQ", "TIME", "DIR", "TYPE", "FLAGS", "LEN", "PAYLOAD"}, recordRows(records))
	return nil
}

func loadRecords(args []string) ([]capture.Record, error) {
	switch {
	case captureShowDB != "" && len(args) > 0:
		return nil, errors.New("give either a JSON Lines file or --db, not both")

	case captureShowDB != "":
		db, err := capture.OpenSQLite(captureShowDB)
		if err != nil {
			return nil, err
		}
		defer func() { _ = db.Close() }()
		return db.Records(captureShowURL)

	case len(args) == 1:
		if captureShowURL != "" {
			return nil, errors.New("--url only applies to --db")
		}
		return capture.ReadJSONL(args[0])
	}
	return nil, errors.New("a capture file or --db is required")
}

// recordRows renders records for the capture table.
func recordRows(records []capture.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		dir := ui.InboundMarker
		if r.Direction == "outbound" {
			dir = ui.OutboundMarker
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Seq),
			r.Timestamp.Local().Format("15:04:05.000"),
			dir,
			r.FrameType,
			frameFlags(r),
			strconv.Itoa(r.PayloadLen),
			preview(r.PayloadASCII, previewChars),
		})
	}
	return rows
}

func frameFlags(r capture.Record) string {
	flags := ""
	if r.FIN {
		flags += "F"
	}
	if r.RSV1 {
		flags += "C"
	}
	if r.Masked {
		flags += "M"
	}
	if flags == "" {
		return "-"
	}
	return flags
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
