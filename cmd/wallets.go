package cmd

import (
	"context"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/pkg/table"
	"github.com/bitlum/cli/pkg/util"
	"github.com/spf13/cobra"
)

// WalletService looks up counterparty wallets.
type WalletService interface {
	Lookup(ctx context.Context, wuid, asset string) (api.WalletDetails, error)
}

// VendorService looks up vendors.
type VendorService interface {
	Get(ctx context.Context, vuid, origin string) (api.Vendor, error)
}

// WalletsCmd handles wallet and vendor lookups.
type WalletsCmd struct {
	wallets       WalletService
	vendors       VendorService
	denominations DenominationSource
}

// WalletDetailsInput holds input for a wallet lookup.
type WalletDetailsInput struct {
	Wuid   string
	Asset  string
	Output string
}

// Details prints what paying a wallet would involve.
func (c WalletsCmd) Details(ctx context.Context, in WalletDetailsInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	w, err := c.wallets.Lookup(ctx, in.Wuid, in.Asset)
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	if in.Output == "json" {
		return util.PrintPrettyJSON(w)
	}

	main, _, _ := c.denominations.Denominations(w.Asset)
	rows := table.PropertyRows()
	rows = append(rows, []string{"Wallet", w.Wuid})
	rows = append(rows, []string{"Asset", util.OrDash(w.Asset)})
	rows = append(rows, []string{"Type", util.OrDash(w.Type)})
	if w.Amount > 0 {
		rows = append(rows, []string{"Amount", main.Stringify(main.Convert(w.Amount), "", denomination.FormatOptions{})})
	}
	if w.Fees != nil {
		rows = append(rows, []string{"Fees", main.Stringify(main.Convert(w.Fees.Total), "", denomination.FormatOptions{})})
	}
	if w.Vuid != "" {
		name := w.Vuid
		if v, err := c.vendors.Get(ctx, w.Vuid, ""); err == nil && v.Name != "" {
			name = v.Name
		}
		rows = append(rows, []string{"Vendor", name})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// GetVendorInput holds input for a vendor lookup.
type GetVendorInput struct {
	Vuid   string
	Origin string
	Output string
}

// Vendor prints a vendor found by id or by website origin.
func (c WalletsCmd) Vendor(ctx context.Context, in GetVendorInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	v, err := c.vendors.Get(ctx, in.Vuid, in.Origin)
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	if in.Output == "json" {
		return util.PrintPrettyJSON(v)
	}
	rows := table.PropertyRows()
	rows = append(rows, []string{"ID", util.OrDash(v.Vuid)})
	rows = append(rows, []string{"Name", util.OrDash(v.Name)})
	rows = append(rows, []string{"Origin", util.OrDash(v.Origin)})
	rows = append(rows, []string{"Icon", util.OrDash(v.IconURL)})
	rows = append(rows, []string{"Color", util.OrDash(v.Color)})
	table.PrintTableNoPad(rows, true)
	return nil
}

var walletsCmd = &cobra.Command{
	Use:     "wallets",
	Aliases: []string{"wallet"},
	Short:   "Look up wallets",
}

var walletsDetailsCmd = &cobra.Command{
	Use:   "details <wuid>",
	Short: "Show what paying a wallet involves",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletsDetails,
}

var vendorsCmd = &cobra.Command{
	Use:     "vendors",
	Aliases: []string{"vendor"},
	Short:   "Look up vendors",
}

var vendorsGetCmd = &cobra.Command{
	Use:   "get [vuid]",
	Short: "Show a vendor by id, or by --origin",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVendorsGet,
}

func init() {
	walletsDetailsCmd.Flags().String("asset", "BTC", "Asset of the wallet")
	walletsDetailsCmd.Flags().StringP("output", "o", "", "Output format: json for raw API response")
	vendorsGetCmd.Flags().String("origin", "", "Website origin of the vendor")
	vendorsGetCmd.Flags().StringP("output", "o", "", "Output format: json for raw API response")

	walletsCmd.AddCommand(walletsDetailsCmd)
	vendorsCmd.AddCommand(vendorsGetCmd)
	rootCmd.AddCommand(walletsCmd, vendorsCmd)
}

func newWalletsCmd(cmd *cobra.Command) WalletsCmd {
	st := getApp(cmd).state
	return WalletsCmd{wallets: st.Wallets, vendors: st.Vendors, denominations: st.Settings}
}

func runWalletsDetails(cmd *cobra.Command, args []string) error {
	asset, _ := cmd.Flags().GetString("asset")
	output, _ := cmd.Flags().GetString("output")
	return newWalletsCmd(cmd).Details(cmd.Context(), WalletDetailsInput{Wuid: args[0], Asset: asset, Output: output})
}

func runVendorsGet(cmd *cobra.Command, args []string) error {
	origin, _ := cmd.Flags().GetString("origin")
	output, _ := cmd.Flags().GetString("output")
	in := GetVendorInput{Origin: origin, Output: output}
	if len(args) > 0 {
		in.Vuid = args[0]
	}
	return newWalletsCmd(cmd).Vendor(cmd.Context(), in)
}
