package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	dtcRed    = color.New(color.FgRed).SprintfFunc()
	dtcYellow = color.New(color.FgYellow).SprintfFunc()
)

func init() {
	dtcCmd.AddCommand(dtcListCmd)
	dtcCmd.AddCommand(dtcClearCmd)
	rootCmd.AddCommand(dtcCmd)
}

var dtcCmd = &cobra.Command{
	Use:   "dtc",
	Short: "diagnostic trouble codes",
}

var dtcListCmd = &cobra.Command{
	Use:   "list",
	Short: "show stored DTCs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		dtcs, err := c.ReadDTCs(cmd.Context())
		if err != nil {
			return err
		}
		if len(dtcs) == 0 {
			fmt.Println("no trouble codes stored")
			return nil
		}
		for _, d := range dtcs {
			code := d.String()
			switch {
			case d.Confirmed():
				code = dtcRed("%s", code)
			case d.Pending():
				code = dtcYellow("%s", code)
			}
			fmt.Printf("%s  status 0x%02X confirmed=%v pending=%v mil=%v\n",
				code, d.Status, d.Confirmed(), d.Pending(), d.WarningIndicator())
		}
		return nil
	},
}

var dtcClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "clear all DTC groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		if _, err := c.ClearDTCs(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("trouble codes cleared")
		return nil
	},
}
