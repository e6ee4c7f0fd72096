package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/internal/state"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/pkg/table"
	"github.com/bitlum/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// PaymentService is the part of the payments state the payment commands use.
type PaymentService interface {
	Refresh(ctx context.Context, opts ...store.FetchOption) ([]state.Payment, error)
	Get(ctx context.Context, puid string) (state.Payment, error)
	Send(ctx context.Context, params api.SendParams) (state.Payment, error)
	Estimate(ctx context.Context, params api.SendParams) (api.Estimate, error)
	Receive(ctx context.Context, params api.ReceiveParams) (api.Invoice, error)
}

// DenominationSource resolves the display units chosen for an asset.
type DenominationSource interface {
	Denominations(asset string) (main, additional denomination.Denomination, hasAdditional bool)
}

// PaymentsCmd handles payment operations.
type PaymentsCmd struct {
	payments      PaymentService
	denominations DenominationSource
	// confirm asks before sending; nil sends without asking.
	confirm func(question string) (bool, error)
}

// ListPaymentsInput holds input for listing payments.
type ListPaymentsInput struct {
	Direction string
	Limit     int
	Output    string
}

// List prints the payment history, newest first.
func (c PaymentsCmd) List(ctx context.Context, in ListPaymentsInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	switch in.Direction {
	case "", api.DirectionIncoming, api.DirectionOutgoing:
	default:
		return fmt.Errorf("invalid --direction %q: use %s or %s", in.Direction, api.DirectionIncoming, api.DirectionOutgoing)
	}

	list, err := c.payments.Refresh(ctx)
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	if in.Direction != "" {
		list = lo.Filter(list, func(p state.Payment, _ int) bool { return p.Direction == in.Direction })
	}
	if in.Limit > 0 && len(list) > in.Limit {
		list = list[:in.Limit]
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(list)
	}
	if len(list) == 0 {
		pterm.Info.Println("No payments found")
		return nil
	}

	rows := pterm.TableData{{"Date", "Counterparty", "Amount", "Converted", "Status", "Description"}}
	for _, p := range list {
		main, _ := p.Formatted(state.DenominationMain, denomination.FormatOptions{})
		additional, _ := p.Formatted(state.DenominationAdditional, denomination.FormatOptions{})
		rows = append(rows, []string{
			util.FormatMillis(p.CreatedAt),
			util.OrDash(p.VendorName),
			util.OrDash(main.Total),
			util.OrDash(additional.Total),
			util.OrDash(p.Status),
			util.Truncate(util.OrDash(p.Description), 40),
		})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// GetPaymentInput holds input for getting a payment.
type GetPaymentInput struct {
	Puid   string
	Output string
}

// Get prints one payment.
func (c PaymentsCmd) Get(ctx context.Context, in GetPaymentInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	p, err := c.payments.Get(ctx, in.Puid)
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	if in.Output == "json" {
		return util.PrintPrettyJSON(p)
	}
	printPayment(p)
	return nil
}

func printPayment(p state.Payment) {
	main, _ := p.Formatted(state.DenominationMain, denomination.FormatOptions{})
	rows := table.PropertyRows()
	rows = append(rows, []string{"ID", p.Puid})
	rows = append(rows, []string{"Direction", util.OrDash(p.Direction)})
	rows = append(rows, []string{"Counterparty", util.FirstOrDash(p.VendorName, p.Vuid, p.Wuid)})
	rows = append(rows, []string{"Amount", util.OrDash(main.Amount)})
	rows = append(rows, []string{"Fees", util.OrDash(main.Fees)})
	rows = append(rows, []string{"Total", util.OrDash(main.Total)})
	if additional, ok := p.Formatted(state.DenominationAdditional, denomination.FormatOptions{}); ok {
		rows = append(rows, []string{"Converted", additional.Total})
	}
	rows = append(rows, []string{"Status", util.OrDash(p.Status)})
	rows = append(rows, []string{"Description", util.OrDash(p.Description)})
	rows = append(rows, []string{"Created", util.FormatMillis(p.CreatedAt)})
	if p.UpdatedAt > 0 {
		rows = append(rows, []string{"Updated", util.FormatMillis(p.UpdatedAt)})
	}
	table.PrintTableNoPad(rows, true)
}

// SendPaymentInput holds input for sending a payment.
type SendPaymentInput struct {
	To       string
	Amount   float64
	Asset    string
	Estimate bool
	Output   string
}

// Send pays in.Amount to in.To, or only estimates the cost.
func (c PaymentsCmd) Send(ctx context.Context, in SendPaymentInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	params := api.SendParams{To: in.To, Amount: in.Amount, Asset: in.Asset}

	est, err := c.payments.Estimate(ctx, params)
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	if in.Estimate {
		if in.Output == "json" {
			return util.PrintPrettyJSON(est)
		}
		c.printEstimate(est)
		return nil
	}

	if c.confirm != nil {
		main, _, _ := c.denominations.Denominations(est.Asset)
		question := fmt.Sprintf("Send %s to %s (fees %s)?",
			main.Stringify(main.Convert(est.Amount), "", denomination.FormatOptions{}),
			in.To,
			main.Stringify(main.Convert(est.Fees.Total), "", denomination.FormatOptions{}))
		ok, err := c.confirm(question)
		if err != nil {
			return err
		}
		if !ok {
			pterm.Info.Println("Payment cancelled")
			return nil
		}
	}

	p, err := c.payments.Send(ctx, params)
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	if in.Output == "json" {
		return util.PrintPrettyJSON(p)
	}
	pterm.Success.Printf("Payment %s sent\n", p.Puid)
	printPayment(p)
	return nil
}

func (c PaymentsCmd) printEstimate(est api.Estimate) {
	main, _, _ := c.denominations.Denominations(est.Asset)
	opts := denomination.FormatOptions{}
	rows := table.PropertyRows()
	rows = append(rows, []string{"Amount", main.Stringify(main.Convert(est.Amount), "", opts)})
	rows = append(rows, []string{"Fees", main.Stringify(main.Convert(est.Fees.Total), "", opts)})
	rows = append(rows, []string{"Total", main.Stringify(main.Convert(est.Amount).Add(main.Convert(est.Fees.Total)), "", opts)})
	table.PrintTableNoPad(rows, true)
}

// ReceivePaymentInput holds input for creating an invoice.
type ReceivePaymentInput struct {
	Type   string
	Amount float64
	Asset  string
	Output string
}

// Receive creates an invoice to be paid.
func (c PaymentsCmd) Receive(ctx context.Context, in ReceivePaymentInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	inv, err := c.payments.Receive(ctx, api.ReceiveParams{Type: in.Type, Amount: in.Amount, Asset: in.Asset})
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	if in.Output == "json" {
		return util.PrintPrettyJSON(inv)
	}

	rows := table.PropertyRows()
	rows = append(rows, []string{"Wallet", inv.Wuid})
	rows = append(rows, []string{"Type", util.OrDash(inv.Type)})
	rows = append(rows, []string{"Asset", util.OrDash(inv.Asset)})
	if inv.Amount > 0 {
		main, _, _ := c.denominations.Denominations(inv.Asset)
		rows = append(rows, []string{"Amount", main.Stringify(main.Convert(inv.Amount), "", denomination.FormatOptions{})})
	}
	if inv.ExpiresAt > 0 {
		rows = append(rows, []string{"Expires", util.FormatMillis(inv.ExpiresAt)})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

func checkOutput(output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	return nil
}

var paymentsCmd = &cobra.Command{
	Use:     "payments",
	Aliases: []string{"payment"},
	Short:   "List, send and receive payments",
}

var paymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List payments, newest first",
	Args:  cobra.NoArgs,
	RunE:  runPaymentsList,
}

var paymentsGetCmd = &cobra.Command{
	Use:   "get <puid>",
	Short: "Show a payment",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaymentsGet,
}

var paymentsSendCmd = &cobra.Command{
	Use:   "send <wuid> <amount>",
	Short: "Send a payment",
	Args:  cobra.ExactArgs(2),
	RunE:  runPaymentsSend,
}

var paymentsReceiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Create an invoice to receive a payment",
	Args:  cobra.NoArgs,
	RunE:  runPaymentsReceive,
}

func init() {
	paymentsListCmd.Flags().String("direction", "", "Only show incoming or outgoing payments")
	paymentsListCmd.Flags().Int("limit", 0, "Maximum number of payments to show")

	paymentsSendCmd.Flags().String("asset", "BTC", "Asset to send")
	paymentsSendCmd.Flags().Bool("estimate", false, "Only estimate fees, do not send")
	paymentsSendCmd.Flags().BoolP("yes", "y", false, "Send without asking for confirmation")

	paymentsReceiveCmd.Flags().String("type", "lightning", "Invoice type")
	paymentsReceiveCmd.Flags().String("asset", "BTC", "Asset to receive")
	paymentsReceiveCmd.Flags().Float64("amount", 0, "Requested amount, empty for any")

	for _, c := range []*cobra.Command{paymentsListCmd, paymentsGetCmd, paymentsSendCmd, paymentsReceiveCmd} {
		c.Flags().StringP("output", "o", "", "Output format: json for raw API response")
	}

	paymentsCmd.AddCommand(paymentsListCmd, paymentsGetCmd, paymentsSendCmd, paymentsReceiveCmd)
	rootCmd.AddCommand(paymentsCmd)
}

func newPaymentsCmd(cmd *cobra.Command) PaymentsCmd {
	st := getApp(cmd).state
	return PaymentsCmd{payments: st.Payments, denominations: st.Settings}
}

func runPaymentsList(cmd *cobra.Command, args []string) error {
	direction, _ := cmd.Flags().GetString("direction")
	limit, _ := cmd.Flags().GetInt("limit")
	output, _ := cmd.Flags().GetString("output")
	return newPaymentsCmd(cmd).List(cmd.Context(), ListPaymentsInput{Direction: direction, Limit: limit, Output: output})
}

func runPaymentsGet(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	return newPaymentsCmd(cmd).Get(cmd.Context(), GetPaymentInput{Puid: args[0], Output: output})
}

func runPaymentsSend(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	asset, _ := cmd.Flags().GetString("asset")
	estimate, _ := cmd.Flags().GetBool("estimate")
	yes, _ := cmd.Flags().GetBool("yes")
	output, _ := cmd.Flags().GetString("output")

	c := newPaymentsCmd(cmd)
	if !yes {
		c.confirm = func(question string) (bool, error) {
			return pterm.DefaultInteractiveConfirm.Show(question)
		}
	}
	return c.Send(cmd.Context(), SendPaymentInput{To: args[0], Amount: amount, Asset: asset, Estimate: estimate, Output: output})
}

func runPaymentsReceive(cmd *cobra.Command, args []string) error {
	typ, _ := cmd.Flags().GetString("type")
	asset, _ := cmd.Flags().GetString("asset")
	amount, _ := cmd.Flags().GetFloat64("amount")
	output, _ := cmd.Flags().GetString("output")
	return newPaymentsCmd(cmd).Receive(cmd.Context(), ReceivePaymentInput{Type: typ, Amount: amount, Asset: asset, Output: output})
}
