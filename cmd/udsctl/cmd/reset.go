package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roffe/gouds/uds"
)

func init() {
	rootCmd.AddCommand(resetCmd)
}

var resetCmd = &cobra.Command{
	Use:   "reset <hard|keyoffon|soft>",
	Short: "reset the ECU",
	Long:  `Send ECUReset. The ECU drops off the bus while it reboots; wait before talking to it again`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind byte
		switch args[0] {
		case "hard":
			kind = uds.ResetHard
		case "keyoffon":
			kind = uds.ResetKeyOffOn
		case "soft":
			kind = uds.ResetSoft
		default:
			k, err := parseByte(args[0])
			if err != nil {
				return fmt.Errorf("unknown reset kind %q", args[0])
			}
			kind = k
		}
		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		resp, err := c.EcuReset(cmd.Context(), kind)
		if err != nil {
			return err
		}
		fmt.Printf("reset accepted: % X\n", resp.Raw)
		return nil
	},
}
