package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roffe/gouds/uds"
)

func init() {
	rootCmd.AddCommand(routineCmd)
}

var routineCmd = &cobra.Command{
	Use:   "routine <start|stop|result> <id> [hex params]",
	Short: "control a routine",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sub byte
		switch args[0] {
		case "start":
			sub = uds.RoutineStart
		case "stop":
			sub = uds.RoutineStop
		case "result":
			sub = uds.RoutineRequestResult
		default:
			return fmt.Errorf("unknown routine action %q", args[0])
		}
		routineID, err := parseUint16(args[1])
		if err != nil {
			return err
		}
		var params []byte
		if len(args) > 2 {
			params, err = parseHexBytes(args[2:])
			if err != nil {
				return err
			}
		}
		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		record, err := c.RoutineControl(cmd.Context(), sub, routineID, params)
		if err != nil {
			return err
		}
		if len(record) > 0 {
			fmt.Printf("routine 0x%04X status record: % X\n", routineID, record)
		} else {
			fmt.Printf("routine 0x%04X ok\n", routineID)
		}
		return nil
	},
}
