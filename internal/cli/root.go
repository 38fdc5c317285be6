package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/dto"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/spf13/cobra"
)

const (
	outputPlain = "plain"
	outputJSON  = "json"
)

type options struct {
	api    string
	token  string
	output string
}

func (o *options) client() *Client {
	return NewClient(o.api, o.token)
}

// NewRootCmd builds the escrowctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "escrowctl",
		Short: "Inspect ONDC seller escrows",
		Long:  "A command-line tool for operators to inspect escrows, their ledger, audit trail and notarization chain.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != outputPlain && opts.output != outputJSON {
				return fmt.Errorf("unknown output format %q (plain|json)", opts.output)
			}
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.api, "api", envOr("ESCROW_API", "http://localhost:3000"), "Escrow API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ESCROW_TOKEN"), "Bearer token (see escrowctl token)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputPlain, "Output format: plain|json")

	root.AddCommand(
		newTokenCmd(opts),
		newGetCmd(opts),
		newListCmd(opts),
		newAuditCmd(opts),
		newTxsCmd(opts),
		newVerifyCmd(opts),
	)
	return root
}

func newTokenCmd(opts *options) *cobra.Command {
	var keyHex string
	cmd := &cobra.Command{
		Use:   "token [wallet]",
		Short: "Request an API token for a wallet",
		Long: `Request an API token. With --key the wallet signs a login challenge; without it
the server must run with AUTH_DEV_MODE=true and the wallet is taken from the argument.`,
		Example: `  export ESCROW_TOKEN=$(escrowctl token --key $ESCROW_WALLET_KEY)
  escrowctl token 0x2c7536E3605D9C16a7a3D7b1898e529396a65c23   # dev mode only`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				resp *dto.AuthResponse
				err  error
			)
			switch {
			case keyHex != "":
				key, kerr := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
				if kerr != nil {
					return fmt.Errorf("invalid wallet key: %w", kerr)
				}
				resp, err = opts.client().SignIn(cmd.Context(), key)
			case len(args) == 1:
				resp, err = opts.client().Token(cmd.Context(), dto.AuthWalletRequest{WalletAddress: args[0]})
			default:
				return fmt.Errorf("either --key or a wallet argument is required")
			}
			if err != nil {
				return err
			}
			if opts.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", os.Getenv("ESCROW_WALLET_KEY"), "Hex secp256k1 private key used to sign the login challenge")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <escrow-id>",
		Short: "Show one escrow",
		Example: `  escrowctl get 7b0c3c1e-4d0a-4f5e-9a51-3d2f7e3c9b10
  escrowctl get 7b0c3c1e-4d0a-4f5e-9a51-3d2f7e3c9b10 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := opts.client().Escrow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), acc)
			}
			printEscrow(cmd.OutOrStdout(), acc)
			return nil
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	var wallet string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escrows of a wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := opts.client().Escrows(cmd.Context(), wallet)
			if err != nil {
				return err
			}
			if opts.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), accounts)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tORDER\tSTATUS\tAMOUNT\tCREATED")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\n", a.ID, a.OrderID, a.Status, a.Amount.StringFixed(2), a.Currency, a.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "Wallet address (defaults to the token's wallet)")
	return cmd
}

func newAuditCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <escrow-id>",
		Short: "Show the audit trail of an escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := opts.client().AuditTrail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tACTOR\tROLE\tTRANSITION")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Action, e.Actor, e.ActorRole, transition(e.PreviousStatus, e.NewStatus))
			}
			return w.Flush()
		},
	}
}

func newTxsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "txs <escrow-id>",
		Aliases: []string{"transactions"},
		Short:   "Show the ledger entries of an escrow",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := opts.client().Transactions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), txs)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tFROM\tTO\tAMOUNT")
			for _, t := range txs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\n", t.Timestamp.Format(time.RFC3339), t.Action, t.From, t.To, t.Amount.StringFixed(2), t.Currency)
			}
			return w.Flush()
		},
	}
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <escrow-id>",
		Short: "Check the escrow's notarization hash and chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			record, err := c.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			chain, err := c.Chain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"record": record, "chain": chain})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Escrow:    %s\n", record.EscrowID)
			fmt.Fprintf(out, "Notarized: %t\n", record.Verified)
			if record.ChainTxHash != "" {
				fmt.Fprintf(out, "Hash:      %s\n", record.ChainTxHash)
			}
			fmt.Fprintf(out, "Records:   %d\n", chain.Records)
			if chain.Valid {
				fmt.Fprintln(out, "Chain:     valid")
				return nil
			}
			fmt.Fprintf(out, "Chain:     BROKEN (%s)\n", chain.Reason)
			return fmt.Errorf("notarization chain of %s is broken", record.EscrowID)
		},
	}
}

func printEscrow(out io.Writer, a *models.EscrowAccount) {
	fmt.Fprintf(out, "Escrow:   %s\n", a.ID)
	fmt.Fprintf(out, "Order:    %s\n", a.OrderID)
	fmt.Fprintf(out, "Status:   %s\n", a.Status)
	fmt.Fprintf(out, "Amount:   %s %s\n", a.Amount.StringFixed(2), a.Currency)
	for _, p := range []models.EscrowParty{a.Buyer, a.Seller, a.Escrow} {
		fmt.Fprintf(out, "%-9s %s (%s) approval=%s\n", string(p.Role)+":", p.Name, p.WalletAddress, p.ApprovalStatus)
	}
	if a.ChainTxHash != "" {
		fmt.Fprintf(out, "Hash:     %s\n", a.ChainTxHash)
	}
	if a.ReleasedAt != nil {
		fmt.Fprintf(out, "Released: %s\n", a.ReleasedAt.Format(time.RFC3339))
	}
}

func transition(from, to models.EscrowStatus) string {
	if from == "" {
		return string(to)
	}
	return string(from) + " -> " + string(to)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
