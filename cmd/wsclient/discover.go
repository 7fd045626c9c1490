package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/discovery"
	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/ui"
)

// Discover command flags
var (
	discoverTimeout time.Duration
	discoverWaitFor string
)

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for advertisements")
	discoverCmd.Flags().StringVar(&discoverWaitFor, "wait-for", "", "Stop as soon as an endpoint with this instance name appears")

	rootCmd.AddCommand(discoverCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find WebSocket servers on the local network",
	Long: `Browse mDNS/DNS-SD for _ws._tcp and _wss._tcp services.

Servers may publish a TXT record "path=/..." with the request path; it is
used in the printed URL. When --timeout is not given, the discover_timeout
preference from the config file applies.`,
	Example: `  # List everything advertised within the default timeout
  wsclient discover

  # Longer scan
  wsclient discover --timeout 15s

  # Block until a named service shows up, then print its URL
  wsclient discover --wait-for "Echo Server" --timeout 30s`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := discoverTimeout
	if !cmd.Flags().Changed("timeout") {
		if reg, err := config.LoadRegistry(); err == nil && reg.Preferences != nil && reg.Preferences.DiscoverTimeout > 0 {
			timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
		}
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = timeout

	p := ui.NewPrinter(cmd.OutOrStdout())
	params := []ui.Param{
		{Key: "Services", Value: discovery.ServiceWS + ", " + discovery.ServiceWSS},
		{Key: "Timeout", Value: timeout.String()},
	}
	if discoverWaitFor != "" {
		params = append(params, ui.Param{Key: "Waiting For", Value: discoverWaitFor})
	}
	p.PrintHeader("Discover Endpoints", "wsclient discover", params)

	if discoverWaitFor != "" {
		ep, err := scanner.WaitFor(cmd.Context(), discoverWaitFor)
		if err != nil {
			p.PrintFailure("Endpoint Not Found", err)
			return errReported
		}
		p.PrintSuccess("Endpoint Found", endpointDetails(ep))
		return nil
	}

	endpoints, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.PrintFailure("Discovery Failed", err)
		return errReported
	}
	logging.Debug("Discovery finished", zap.Int("endpoints", len(endpoints)))

	if len(endpoints) == 0 {
		p.PrintWarning("No Endpoints Found", []ui.Param{
			{Key: "Tip", Value: "servers must advertise " + discovery.ServiceWS + " or " + discovery.ServiceWSS},
			{Key: "Tip", Value: "multicast does not cross most routers or VPNs"},
			{Key: "Tip", Value: "try a longer --timeout"},
		})
		return nil
	}

	rows := make([][]string, 0, len(endpoints))
	for _, ep := range endpoints {
		rows = append(rows, []string{ep.Instance, ep.URL(), ep.Hostname})
	}
	p.PrintTable([]string{"NAME", "URL", "HOST"}, rows)
	p.Newline()
	p.PrintSuccess("Discovery Complete", []ui.Param{
		{Key: "Endpoints", Value: strconv.Itoa(len(endpoints))},
	})
	return nil
}

func endpointDetails(ep *discovery.Endpoint) []ui.Param {
	details := []ui.Param{
		{Key: "Instance", Value: ep.Instance},
		{Key: "URL", Value: ep.URL()},
		{Key: "Host", Value: ep.Hostname},
	}
	if proto := ep.GetMetadata("protocol"); proto != "" {
		details = append(details, ui.Param{Key: "Protocol", Value: proto})
	}
	return details
}
