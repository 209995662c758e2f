package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(readCmd)
}

var readCmd = &cobra.Command{
	Use:   "read <did>",
	Short: "read a data identifier",
	Long:  `Send ReadDataByIdentifier for a 16-bit did, eg "read F190" for the VIN`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		value, err := c.ReadDataByIdentifier(cmd.Context(), did)
		if err != nil {
			return err
		}
		fmt.Printf("0x%04X: % X  %s\n", did, value, printable(value))
		return nil
	},
}

func printable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 127 {
			out.WriteByte('.')
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
