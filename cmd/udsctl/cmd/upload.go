package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const (
	flagAddress = "addr"
	flagUnlock  = "unlock"
)

func init() {
	f := uploadCmd.Flags()
	f.String(flagAddress, "0", "target memory address (hex)")
	f.String(flagUnlock, "", "run SecurityAccess on this level first")
	addDeriveFlags(f)
	rootCmd.AddCommand(uploadCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "transfer a file to the ECU",
	Long: `Announce a transfer with RequestDownload, stream the file in
TransferData blocks sized to what the ECU granted and close with
RequestTransferExit. The file is sent as-is; no format is assumed`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %v", err)
		}
		if len(data) == 0 {
			return fmt.Errorf("%s is empty", args[0])
		}
		addrStr, err := cmd.Flags().GetString(flagAddress)
		if err != nil {
			return err
		}
		address, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(addrStr), "0x"), 16, 32)
		if err != nil {
			return fmt.Errorf("invalid address %q: %v", addrStr, err)
		}

		c, tr, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer tr.Close()

		if levelStr, err := cmd.Flags().GetString(flagUnlock); err == nil && levelStr != "" {
			level, err := parseByte(levelStr)
			if err != nil {
				return err
			}
			derive, err := deriveFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := unlockWith(ctx, c, derive, level); err != nil {
				return err
			}
		}

		maxBlock, err := c.RequestDownload(ctx, uint32(address), uint32(len(data)))
		if err != nil {
			return err
		}
		// the granted block length includes the service id and the block
		// counter byte
		chunkSize := maxBlock - 2
		if chunkSize < 1 {
			return fmt.Errorf("ECU granted unusable block length %d", maxBlock)
		}

		bar := progressbar.NewOptions(len(data),
			progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(20),
			progressbar.OptionSetDescription("[cyan]uploading[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)

		var blockSeq byte = 1
		for pos := 0; pos < len(data); pos += chunkSize {
			end := pos + chunkSize
			if end > len(data) {
				end = len(data)
			}
			if _, err := c.TransferData(ctx, blockSeq, data[pos:end]); err != nil {
				return err
			}
			blockSeq++
			bar.Add(end - pos)
		}
		if err := c.RequestTransferExit(ctx); err != nil {
			return err
		}
		fmt.Println()
		fmt.Printf("transferred %d bytes to 0x%08X\n", len(data), address)
		return nil
	},
}
