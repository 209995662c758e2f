package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(presentCmd)
}

var presentCmd = &cobra.Command{
	Use:   "present",
	Short: "send a TesterPresent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		if err := c.TesterPresent(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("tester present acknowledged")
		return nil
	},
}
