package cmd

import (
	"slices"
	"strings"

	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/internal/state"
	"github.com/bitlum/cli/pkg/table"
	"github.com/bitlum/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// SettingsService is the part of the settings state the settings commands use.
type SettingsService interface {
	Catalog() denomination.Catalog
	Choice(asset string) state.DenominationChoice
	SetDenomination(asset, main, additional string) error
	SetNotifications(enabled bool)
	NotificationsEnabled() bool
}

// SettingsCmd handles local preferences.
type SettingsCmd struct {
	settings SettingsService
}

// ShowSettingsInput holds input for settings show.
type ShowSettingsInput struct {
	Output string
}

// Show prints the preferences and the denominations available per asset.
func (c SettingsCmd) Show(in ShowSettingsInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	catalog := c.settings.Catalog()
	assets := make([]string, 0, len(catalog))
	for asset := range catalog {
		assets = append(assets, asset)
	}
	slices.Sort(assets)

	if in.Output == "json" {
		choices := map[string]state.DenominationChoice{}
		for _, asset := range assets {
			choices[asset] = c.settings.Choice(asset)
		}
		return util.PrintPrettyJSON(struct {
			Notifications bool                                `json:"notifications"`
			Denominations map[string]state.DenominationChoice `json:"denominations"`
		}{c.settings.NotificationsEnabled(), choices})
	}

	pterm.Info.Printf("Notifications: %s\n", onOff(c.settings.NotificationsEnabled()))
	rows := pterm.TableData{{"Asset", "Main", "Additional", "Available"}}
	for _, asset := range assets {
		choice := c.settings.Choice(asset)
		rows = append(rows, []string{
			asset,
			choice.Main,
			util.OrDash(choice.Additional),
			strings.Join(catalog.Names(asset), ", "),
		})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// SetDenominationInput holds input for settings denomination.
type SetDenominationInput struct {
	Asset      string
	Main       string
	Additional string
}

// SetDenomination chooses how amounts of an asset are shown.
func (c SettingsCmd) SetDenomination(in SetDenominationInput) error {
	if err := c.settings.SetDenomination(in.Asset, in.Main, in.Additional); err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	if in.Additional == "" {
		pterm.Success.Printf("%s amounts are now shown in %s\n", in.Asset, in.Main)
		return nil
	}
	pterm.Success.Printf("%s amounts are now shown in %s and %s\n", in.Asset, in.Main, in.Additional)
	return nil
}

// SetNotifications turns payment notifications on or off.
func (c SettingsCmd) SetNotifications(enabled bool) error {
	c.settings.SetNotifications(enabled)
	pterm.Success.Printf("Notifications %s\n", onOff(enabled))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change local preferences",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show preferences",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsDenominationCmd = &cobra.Command{
	Use:   "denomination <asset> <main> [additional]",
	Short: "Choose the denominations amounts of an asset are shown in",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runSettingsDenomination,
}

var settingsNotificationsCmd = &cobra.Command{
	Use:       "notifications <on|off>",
	Short:     "Turn payment notifications on or off",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE:      runSettingsNotifications,
}

func init() {
	settingsShowCmd.Flags().StringP("output", "o", "", "Output format: json")

	settingsCmd.AddCommand(settingsShowCmd, settingsDenominationCmd, settingsNotificationsCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	c := SettingsCmd{settings: getApp(cmd).state.Settings}
	return c.Show(ShowSettingsInput{Output: output})
}

func runSettingsDenomination(cmd *cobra.Command, args []string) error {
	in := SetDenominationInput{Asset: args[0], Main: args[1]}
	if len(args) == 3 {
		in.Additional = args[2]
	}
	c := SettingsCmd{settings: getApp(cmd).state.Settings}
	return c.SetDenomination(in)
}

func runSettingsNotifications(cmd *cobra.Command, args []string) error {
	c := SettingsCmd{settings: getApp(cmd).state.Settings}
	return c.SetNotifications(args[0] == "on")
}
