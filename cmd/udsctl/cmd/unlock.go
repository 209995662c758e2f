package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roffe/gouds/security"
	"github.com/roffe/gouds/security/keyderivation"
	"github.com/roffe/gouds/uds"
)

const (
	flagRotate     = "rotate"
	flagRotateAdd  = "rotate-add"
	flagXor1       = "xor1"
	flagAdd        = "add"
	flagXor2       = "xor2"
	flagCMACSecret = "cmac-secret"
	flagKeyLen     = "key-len"
)

// addDeriveFlags registers the key-derivation knobs on every command that
// can run a seed/key exchange.
func addDeriveFlags(f *pflag.FlagSet) {
	f.Uint(flagRotate, 5, "placeholder: right rotate amount")
	f.Uint16(flagRotateAdd, 0xB988, "placeholder: constant added after rotate")
	f.Uint16(flagXor1, 0x8749, "placeholder: first xor mask")
	f.Uint16(flagAdd, 0x06D3, "placeholder: additive constant")
	f.Uint16(flagXor2, 0xCFDF, "placeholder: second xor mask")
	f.String(flagCMACSecret, "", "hex AES key, use AES-CMAC derivation instead of the placeholder")
	f.Int(flagKeyLen, 4, "key length for the CMAC derivation")
}

func init() {
	addDeriveFlags(unlockCmd.Flags())
	rootCmd.AddCommand(unlockCmd)
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <level>",
	Short: "run the SecurityAccess seed/key exchange",
	Long: `Request the seed for an odd access level, derive the key and send it.
The derivation is the 16-bit rotate/xor placeholder unless --cmac-secret
selects AES-CMAC. A failed key is never retried; ECUs count attempts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseByte(args[0])
		if err != nil {
			return err
		}

		derive, err := deriveFromFlags(cmd)
		if err != nil {
			return err
		}

		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		return unlockWith(cmd.Context(), c, derive, level)
	},
}

func unlockWith(ctx context.Context, c *uds.Client, derive security.KeyDerivation, level byte) error {
	ctrl := security.New(c, derive)
	obs, err := ctrl.Unlock(ctx, level)
	if obs != nil {
		fmt.Println(obs)
	}
	return err
}

func deriveFromFlags(cmd *cobra.Command) (security.KeyDerivation, error) {
	f := cmd.Flags()
	if secretHex, err := f.GetString(flagCMACSecret); err == nil && secretHex != "" {
		secret, err := hex.DecodeString(secretHex)
		if err != nil {
			return nil, fmt.Errorf("invalid cmac secret: %v", err)
		}
		keyLen, err := f.GetInt(flagKeyLen)
		if err != nil {
			return nil, err
		}
		return keyderivation.CMAC(secret, keyLen)
	}
	rotate, err := f.GetUint(flagRotate)
	if err != nil {
		return nil, err
	}
	rotateAdd, err := f.GetUint16(flagRotateAdd)
	if err != nil {
		return nil, err
	}
	xor1, err := f.GetUint16(flagXor1)
	if err != nil {
		return nil, err
	}
	add, err := f.GetUint16(flagAdd)
	if err != nil {
		return nil, err
	}
	xor2, err := f.GetUint16(flagXor2)
	if err != nil {
		return nil, err
	}
	return keyderivation.Placeholder(rotate, rotateAdd, xor1, add, xor2), nil
}
