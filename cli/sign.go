package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"card-gateway/gateway"
	"card-gateway/ledger"
)

func signCmd() *cobra.Command {
	var showCanonical bool
	cmd := &cobra.Command{
		Use:   "sign key=value...",
		Short: "Print the request signature for a set of fields",
		Long: `Computes the signature the service would send for the given fields,
using gateway.secret from configuration. Useful when comparing against the
gateway's integration tools.`,
		Example: "  card-gateway sign merchantID=100001 action=SALE amount=1000",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Gateway.Secret == "" {
				return errors.New("gateway.secret is not configured")
			}
			fields, err := parseFieldArgs(args)
			if err != nil {
				return err
			}
			return writeSignature(cmd.OutOrStdout(), fields, cfg.Gateway.Secret, showCanonical)
		},
	}
	cmd.Flags().BoolVar(&showCanonical, "canonical", false, "also print the canonical string (card data masked)")
	return cmd
}

func parseFieldArgs(args []string) (gateway.Fields, error) {
	fields := gateway.Fields{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		fields[k] = v
	}
	return fields, nil
}

func writeSignature(w io.Writer, fields gateway.Fields, secret string, canonical bool) error {
	if canonical {
		if _, err := fmt.Fprintln(w, gateway.EncodeSorted(ledger.SanitizeFields(fields))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, gateway.Sign(fields, secret))
	return err
}
