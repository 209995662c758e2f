package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/avast/retry-go"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"

	"github.com/roffe/gouds"
	"github.com/roffe/gouds/isotp"
	"github.com/roffe/gouds/transport/slcan"
	"github.com/roffe/gouds/uds"
)

var rootCmd = &cobra.Command{
	Use:          "udsctl",
	Short:        "UDS diagnostic client",
	Long:         `Talk ISO 14229 to an ECU over an SLCAN adapter or the built in mock`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

const (
	flagPort        = "port"
	flagBaudrate    = "baudrate"
	flagCANRate     = "canrate"
	flagDebug       = "debug"
	flagMock        = "mock"
	flagReqID       = "req-id"
	flagRespID      = "resp-id"
	flagExtended    = "extended"
	flagPaddingByte = "padding-byte"
	flagNoPadding   = "no-padding"
	flagAdopt       = "adopt-timings"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagPort, "p", "*", "com-port, * = print available")
	pf.IntP(flagBaudrate, "b", 115200, "baudrate")
	pf.Float64P(flagCANRate, "r", 500, "CAN bitrate in kbit")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.Bool(flagMock, false, "talk to the built in mock ECU instead of an adapter")
	pf.Uint32(flagReqID, 0x7E0, "request arbitration id")
	pf.Uint32(flagRespID, 0x7E8, "response arbitration id")
	pf.Bool(flagExtended, false, "use 29-bit addressing")
	pf.Uint8(flagPaddingByte, 0x00, "frame padding byte")
	pf.Bool(flagNoPadding, false, "send unpadded frames")
	pf.Bool(flagAdopt, false, "adopt P2/P2* timings reported by the ECU")
}

func moduleAddress(cmd *cobra.Command) (gouds.ModuleAddress, error) {
	pf := rootCmd.PersistentFlags()
	reqID, err := pf.GetUint32(flagReqID)
	if err != nil {
		return gouds.ModuleAddress{}, err
	}
	respID, err := pf.GetUint32(flagRespID)
	if err != nil {
		return gouds.ModuleAddress{}, err
	}
	extended, err := pf.GetBool(flagExtended)
	if err != nil {
		return gouds.ModuleAddress{}, err
	}
	addr := gouds.ModuleAddress{
		RequestID:  reqID,
		ResponseID: respID,
		Extended:   extended,
	}
	if err := addr.Validate(); err != nil {
		return gouds.ModuleAddress{}, err
	}
	return addr, nil
}

func isoTpConfig() (isotp.Config, error) {
	pf := rootCmd.PersistentFlags()
	cfg := isotp.DefaultConfig()
	padByte, err := pf.GetUint8(flagPaddingByte)
	if err != nil {
		return cfg, err
	}
	noPad, err := pf.GetBool(flagNoPadding)
	if err != nil {
		return cfg, err
	}
	cfg.PaddingByte = padByte
	cfg.Padding = !noPad
	return cfg, nil
}

func initTransport(ctx context.Context, addr gouds.ModuleAddress, tpCfg isotp.Config) (gouds.FrameTransport, error) {
	pf := rootCmd.PersistentFlags()
	useMock, err := pf.GetBool(flagMock)
	if err != nil {
		return nil, err
	}
	if useMock {
		return newMockECU(addr, tpCfg), nil
	}

	port, err := pf.GetString(flagPort)
	if err != nil {
		return nil, err
	}
	if port == "*" {
		listPorts()
		return nil, errors.New("no com-port selected")
	}
	baudrate, err := pf.GetInt(flagBaudrate)
	if err != nil {
		return nil, err
	}
	canRate, err := pf.GetFloat64(flagCANRate)
	if err != nil {
		return nil, err
	}
	debug, err := pf.GetBool(flagDebug)
	if err != nil {
		return nil, err
	}

	var tr *slcan.Transport
	err = retry.Do(func() error {
		var err error
		tr, err = slcan.Open(ctx, slcan.Config{
			Port:         port,
			PortBaudrate: baudrate,
			CANRate:      canRate,
			Debug:        debug,
		})
		return err
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("failed to open adapter, retry %d: %v", n, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func listPorts() {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Println(err)
		return
	}
	if len(ports) == 0 {
		log.Println("no serial ports found")
		return
	}
	log.Println("discovered com ports:")
	for _, port := range ports {
		log.Printf("port: %s\n", port.Name)
		if port.IsUSB {
			log.Printf("   USB ID      %s:%s\n", port.VID, port.PID)
			log.Printf("   USB serial  %s\n", port.SerialNumber)
		}
	}
}

func newClient(cmd *cobra.Command) (*uds.Client, gouds.FrameTransport, error) {
	addr, err := moduleAddress(cmd)
	if err != nil {
		return nil, nil, err
	}
	tpCfg, err := isoTpConfig()
	if err != nil {
		return nil, nil, err
	}
	tr, err := initTransport(cmd.Context(), addr, tpCfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []uds.Option{uds.WithIsoTpConfig(tpCfg)}
	if adopt, err := rootCmd.PersistentFlags().GetBool(flagAdopt); err == nil && adopt {
		opts = append(opts, uds.WithAdoptServerTimings())
	}
	return uds.New(tr, addr, opts...), tr, nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q: %v", s, err)
	}
	return byte(v), nil
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q: %v", s, err)
	}
	return uint16(v), nil
}

func parseHexBytes(args []string) ([]byte, error) {
	joined := strings.ReplaceAll(strings.Join(args, ""), " ", "")
	data, err := hex.DecodeString(joined)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %v", err)
	}
	return data, nil
}
