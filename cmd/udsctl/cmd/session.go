package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session <id>",
	Short: "switch diagnostic session",
	Long:  `Send DiagnosticSessionControl. Common ids: 01 default, 02 programming, 03 extended`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := parseByte(args[0])
		if err != nil {
			return err
		}
		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		resp, err := c.StartSession(cmd.Context(), session)
		if err != nil {
			return err
		}
		fmt.Printf("session 0x%02X active", resp.ID)
		if resp.ServerP2 > 0 {
			fmt.Printf(", server asks p2=%s p2*=%s", resp.ServerP2, resp.ServerP2Star)
		}
		fmt.Println()
		return nil
	},
}
