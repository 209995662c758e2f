package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(writeCmd)
}

var writeCmd = &cobra.Command{
	Use:   "write <did> <hex bytes>",
	Short: "write a data identifier",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		value, err := parseHexBytes(args[1:])
		if err != nil {
			return err
		}
		if len(value) == 0 {
			return errors.New("no data to write")
		}
		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		if _, err := c.WriteDataByIdentifier(cmd.Context(), did, value); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to 0x%04X\n", len(value), did)
		return nil
	},
}
