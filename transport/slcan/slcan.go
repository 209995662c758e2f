// Package slcan is a FrameTransport over a Lawicel/Canable-style SLCAN
// serial adapter: a line-oriented protocol where every CAN frame is one
// ASCII record terminated by CR.
package slcan

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"github.com/roffe/gouds"
)

type Config struct {
	Port         string
	PortBaudrate int
	CANRate      float64 // kbit
	Debug        bool
}

type Transport struct {
	cfg  Config
	port serial.Port

	sendChan chan *gouds.CANFrame
	recvChan chan *gouds.CANFrame

	mu        sync.Mutex
	filter    uint32
	hasFilter bool

	closeOnce sync.Once
	closeChan chan struct{}
	closed    bool

	g *errgroup.Group
}

// Open opens the serial port, configures the CAN bitrate and opens the
// channel. The returned transport runs one read and one write pump until
// Close or ctx cancellation.
func Open(ctx context.Context, cfg Config) (*Transport, error) {
	rate, err := canRateCommand(cfg.CANRate)
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: cfg.PortBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open com port %q : %v", cfg.Port, err)
	}
	p.SetReadTimeout(3 * time.Millisecond)
	p.ResetOutputBuffer()
	p.ResetInputBuffer()

	t := &Transport{
		cfg:       cfg,
		port:      p,
		sendChan:  make(chan *gouds.CANFrame, 40),
		recvChan:  make(chan *gouds.CANFrame, 1024),
		closeChan: make(chan struct{}),
	}

	p.Write([]byte("C\r")) // close a channel a previous run left open
	time.Sleep(10 * time.Millisecond)
	p.Write([]byte(rate + "\r"))
	time.Sleep(10 * time.Millisecond)
	p.Write([]byte("O\r"))

	g, gctx := errgroup.WithContext(ctx)
	t.g = g
	g.Go(func() error { return t.recvManager(gctx) })
	g.Go(func() error { return t.sendManager(gctx) })
	return t, nil
}

func canRateCommand(kbit float64) (string, error) {
	switch kbit {
	case 10:
		return "S0", nil
	case 20:
		return "S1", nil
	case 50:
		return "S2", nil
	case 100:
		return "S3", nil
	case 125:
		return "S4", nil
	case 250:
		return "S5", nil
	case 500:
		return "S6", nil
	case 800:
		return "S7", nil
	case 1000:
		return "S8", nil
	default:
		return "", fmt.Errorf("unknown CAN rate: %f", kbit)
	}
}

func (t *Transport) Send(ctx context.Context, frame *gouds.CANFrame) error {
	select {
	case t.sendChan <- frame:
		return nil
	case <-t.closeChan:
		return gouds.ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) Recv(ctx context.Context, deadline time.Time) (*gouds.CANFrame, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	for {
		select {
		case frame := <-t.recvChan:
			if t.accepts(frame.Identifier) {
				return frame, nil
			}
		case <-timer.C:
			return nil, nil
		case <-t.closeChan:
			return nil, gouds.ErrDisconnected
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (t *Transport) SetFilter(accept uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter = accept
	t.hasFilter = true
}

func (t *Transport) accepts(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.hasFilter || t.filter == id
}

func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.closeChan)
		time.Sleep(10 * time.Millisecond)
		t.port.Write([]byte("C\r"))
		time.Sleep(10 * time.Millisecond)
		t.port.Close()
	})
	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) sendManager(ctx context.Context) error {
	outBuf := make([]byte, 0, 32)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.closeChan:
			return nil
		case frame := <-t.sendChan:
			outBuf = encodeFrame(outBuf[:0], frame)
			if t.cfg.Debug {
				log.Println(">> " + string(outBuf))
			}
			if _, err := t.port.Write(outBuf); err != nil {
				if t.isClosed() {
					return nil
				}
				return fmt.Errorf("failed to write to com port: %w", err)
			}
		}
	}
}

// encodeFrame renders one frame as an SLCAN record:
// 't' + 3 hex id digits for 11-bit, 'T' + 8 for 29-bit, then the DLC
// nibble, the data as hex and CR.
func encodeFrame(buf []byte, frame *gouds.CANFrame) []byte {
	if frame.Extended {
		buf = append(buf, 'T')
		id := frame.Identifier & gouds.MaxExtendedID
		for shift := 28; shift >= 0; shift -= 4 {
			buf = append(buf, nybbleToHex(byte(id>>shift)&0xF))
		}
	} else {
		buf = append(buf, 't')
		id := frame.Identifier & gouds.MaxStandardID
		buf = append(buf, nybbleToHex(byte(id>>8)&0xF), nybbleToHex(byte(id>>4)&0xF), nybbleToHex(byte(id)&0xF))
	}
	dlc := frame.DLC()
	buf = append(buf, nybbleToHex(byte(dlc)&0xF))
	for i := 0; i < dlc; i++ {
		buf = append(buf, nybbleToHex(frame.Data[i]>>4), nybbleToHex(frame.Data[i]&0xF))
	}
	return append(buf, '\r')
}

func nybbleToHex(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}

func (t *Transport) recvManager(ctx context.Context) error {
	buf := make([]byte, 0, 1024)
	readBuf := make([]byte, 16)
	for ctx.Err() == nil {
		select {
		case <-t.closeChan:
			return nil
		default:
		}
		n, err := t.port.Read(readBuf)
		if err != nil {
			if t.isClosed() {
				return nil
			}
			return fmt.Errorf("failed to read com port: %w", err)
		}
		if n == 0 {
			continue
		}
		buf = t.parse(ctx, buf, readBuf[:n])
	}
	return nil
}

// parse consumes the read bytes and returns any trailing partial record.
func (t *Transport) parse(ctx context.Context, buf, readBuf []byte) []byte {
	for _, b := range readBuf {
		if b != '\r' {
			buf = append(buf, b)
			continue
		}
		if len(buf) == 0 {
			continue
		}
		switch buf[0] {
		case 't', 'T':
			if t.cfg.Debug {
				log.Println("<< " + string(buf))
			}
			frame, err := decodeFrame(buf)
			if err != nil {
				log.Printf("%v: %X", err, buf)
				buf = buf[:0]
				continue
			}
			select {
			case t.recvChan <- frame:
			case <-ctx.Done():
				return buf[:0]
			default:
				log.Println(gouds.ErrDroppedFrame)
			}
		case 'z', 'Z':
			// transmit ack
		default:
			log.Println("unknown>> " + string(buf))
		}
		buf = buf[:0]
	}
	return buf
}

func decodeFrame(buff []byte) (*gouds.CANFrame, error) {
	idLen := 3
	extended := buff[0] == 'T'
	if extended {
		idLen = 8
	}
	if len(buff) < idLen+2 {
		return nil, fmt.Errorf("frame record too short")
	}
	id, err := strconv.ParseUint(string(buff[1:1+idLen]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %v", err)
	}
	dataLen, err := strconv.ParseUint(string(buff[1+idLen]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data length: %v", err)
	}
	if dataLen > 8 {
		return nil, fmt.Errorf("invalid data length: %d", dataLen)
	}
	if len(buff) < idLen+2+int(dataLen)*2 {
		return nil, fmt.Errorf("frame record truncated")
	}
	data, err := hex.DecodeString(string(buff[idLen+2 : idLen+2+int(dataLen)*2]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame body: %v", err)
	}
	if extended {
		return gouds.NewExtendedFrame(uint32(id), data), nil
	}
	return gouds.NewFrame(uint32(id), data), nil
}
