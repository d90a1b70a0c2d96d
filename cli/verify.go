package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"card-gateway/gateway"
)

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the signature of a raw gateway response read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Gateway.Secret == "" {
				return errors.New("gateway.secret is not configured")
			}
			return verifyRaw(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Gateway.Secret)
		},
	}
}

func verifyRaw(r io.Reader, w io.Writer, secret string) error {
	raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return err
	}
	v := gateway.Verify(trimTrailingNewline(raw), secret)
	if !v.Valid {
		return v.Err()
	}
	_, err = fmt.Fprintln(w, "signature valid")
	return err
}

// Shell pipelines usually add a final newline the gateway never sent.
func trimTrailingNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
