package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/ui"
	"github.com/muurk/wsclient/internal/urls"
)

// Profile command flags
var (
	profileSaveFlags   connFlags
	profileDescription string
	profileMakeDefault bool
	profileYes         bool
)

func init() {
	profileSaveFlags.registerConfig(profileSaveCmd.Flags())
	profileSaveCmd.Flags().StringVarP(&profileDescription, "description", "d", "", "Free-form note shown by 'profile list'")
	profileSaveCmd.Flags().BoolVar(&profileMakeDefault, "default", false, "Use this profile when connect is run without a URL")

	profileDeleteCmd.Flags().BoolVarP(&profileYes, "yes", "y", false, "Delete without asking")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileDefaultCmd)
	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved connection profiles",
	Long: `Profiles store a URL together with client settings in the wsclient
config file (see WSCLIENT_CONFIG to override its location). Any command that
connects accepts --profile; flags given on the command line still win.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a profile as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

var profileSaveCmd = &cobra.Command{
	Use:   "save <name> <url>",
	Short: "Create or replace a profile",
	Long: `Save a URL and client settings under a name. Settings not given as
flags keep their defaults; saving over an existing profile replaces it.`,
	Example: `  wsclient profile save local ws://localhost:8080/echo
  wsclient profile save staging wss://staging.example.com/ws \
      --compress --header "Authorization: Bearer xyz" --ping-interval 15s --default`,
	Args: cobra.ExactArgs(2),
	RunE: runProfileSave,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

var profileDefaultCmd = &cobra.Command{
	Use:   "default [name]",
	Short: "Show or set the default profile",
	Long:  `Without a name, print the default profile. With "none", clear it.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileDefault,
}

func runProfileList(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	names := reg.ProfileNames()
	if len(names) == 0 {
		p.PrintNotice("no profiles saved (see 'wsclient profile save --help')")
		return nil
	}

	p.PrintTable([]string{"NAME", "URL", "LAST USED", "DESCRIPTION"}, profileRows(reg))
	return nil
}

// profileRows builds the list table; the default profile is starred.
func profileRows(reg *config.Registry) [][]string {
	def := ""
	if reg.Preferences != nil {
		def = reg.Preferences.DefaultProfile
	}

	var rows [][]string
	for _, name := range reg.ProfileNames() {
		prof := reg.Profiles[name]
		label := name
		if name == def {
			label += " *"
		}
		lastUsed := "never"
		if !prof.LastUsed.IsZero() {
			lastUsed = prof.LastUsed.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{label, prof.URL, lastUsed, prof.Description})
	}
	return rows
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	prof := reg.GetProfile(args[0])
	if prof == nil {
		return fmt.Errorf("profile %q not found", args[0])
	}

	data, err := yaml.Marshal(prof)
	if err != nil {
		return fmt.Errorf("failed to render profile: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runProfileSave(cmd *cobra.Command, args []string) error {
	name, rawURL := args[0], args[1]

	u, err := urls.Parse(rawURL)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if err := profileSaveFlags.apply(cmd.Flags(), &cfg); err != nil {
		return err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	_, replaced := reg.Profiles[name]
	reg.SetProfile(name, u.String(), profileDescription, cfg)
	if profileMakeDefault {
		reg.Preferences.DefaultProfile = name
	}
	if err := reg.Save(); err != nil {
		return err
	}

	title := "Profile Saved"
	if replaced {
		title = "Profile Replaced"
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess(title, []ui.Param{
		{Key: "Name", Value: name},
		{Key: "URL", Value: u.String()},
	})
	return nil
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	prof := reg.GetProfile(name)
	if prof == nil {
		return fmt.Errorf("profile %q not found", name)
	}

	if !profileYes {
		warnings := []string{fmt.Sprintf("Profile %q (%s) will be removed from the config file", name, prof.URL)}
		if reg.Preferences != nil && reg.Preferences.DefaultProfile == name {
			warnings = append(warnings, "It is the default profile; connect will need a URL afterwards")
		}
		if !ui.Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Delete profile", warnings) {
			return nil
		}
	}

	reg.DeleteProfile(name)
	if err := reg.Save(); err != nil {
		return err
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Profile Deleted", []ui.Param{{Key: "Name", Value: name}})
	return nil
}

func runProfileDefault(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	p := ui.NewPrinter(cmd.OutOrStdout())

	if len(args) == 0 {
		if reg.Preferences.DefaultProfile == "" {
			p.PrintNotice("no default profile")
		} else {
			p.Println(reg.Preferences.DefaultProfile)
		}
		return nil
	}

	name := args[0]
	if name == "none" {
		name = ""
	} else if reg.GetProfile(name) == nil {
		return fmt.Errorf("profile %q not found", name)
	}

	reg.Preferences.DefaultProfile = name
	return reg.Save()
}
