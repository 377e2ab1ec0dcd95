package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wash-sync-backend/config"
	"wash-sync-backend/internal/codec"
)

// NewKeysCommand creates the keys command.
func NewKeysCommand() *cobra.Command {
	var (
		deviceID string
		bits     int
	)

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Print a fresh codec key set for local testing",
		Long: `Print a codec section with a new DES secret and RSA key pair.

The public key is the pair's own, so a service using it can verify envelopes it sealed itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := codec.GenerateKeys(deviceID, bits)
			if err != nil {
				return err
			}
			out := struct {
				Codec config.CodecConfig `yaml:"codec"`
			}{
				Codec: config.CodecConfig{
					DeviceID:   keys.DeviceID,
					SecretKey:  keys.SecretKey,
					PrivateKey: keys.PrivateKey,
					PublicKey:  keys.PublicKey,
				},
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&deviceID, "device-id", "DEV-LOCAL", "device id placed in outgoing headers")
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size")
	return cmd
}
