package isotp

import (
	"context"
	"log"
	"time"

	"github.com/roffe/gouds"
)

// Encoder segments payloads into CAN frames addressed to one module and
// drives the flow-control handshake for multi-frame transmissions.
type Encoder struct {
	tr   gouds.FrameTransport
	addr gouds.ModuleAddress
	cfg  Config
}

func NewEncoder(tr gouds.FrameTransport, addr gouds.ModuleAddress, cfg Config) *Encoder {
	return &Encoder{
		tr:   tr,
		addr: addr,
		cfg:  cfg,
	}
}

// Frames segments payload into the ordered frame sequence that carries it.
// It performs no I/O; Send is the transmitting front end.
func (e *Encoder) Frames(payload []byte) ([]*gouds.CANFrame, error) {
	n := len(payload)
	if n == 0 {
		return nil, ErrPayloadEmpty
	}
	if n > MaxPayload {
		return nil, ErrPayloadTooLarge
	}

	if n <= 7 {
		sf := Single{Data: payload}
		return []*gouds.CANFrame{e.addr.NewFrame(sf.Bytes(e.cfg))}, nil
	}

	out := make([]*gouds.CANFrame, 0, 1+(n-6+6)/7)
	ff := First{TotalLength: n, Data: payload[:6]}
	out = append(out, e.addr.NewFrame(ff.Bytes(e.cfg)))

	var seq byte = 1
	for pos := 6; pos < n; pos += 7 {
		end := pos + 7
		if end > n {
			end = n
		}
		cf := Consecutive{Sequence: seq, Data: payload[pos:end]}
		out = append(out, e.addr.NewFrame(cf.Bytes(e.cfg)))
		seq = (seq + 1) & 0x0F
	}
	return out, nil
}

// Send transmits payload to the module's request id. Single-frame payloads
// go out as one frame; larger payloads follow the first-frame / flow-control
// / consecutive-frame handshake, honoring the receiver's block size and
// minimum separation time.
func (e *Encoder) Send(ctx context.Context, payload []byte) error {
	frames, err := e.Frames(payload)
	if err != nil {
		return err
	}

	if err := e.tr.Send(ctx, frames[0]); err != nil {
		return err
	}
	if len(frames) == 1 {
		return nil
	}

	var (
		block   int // frames left in the current block, -1 = unlimited
		spacing time.Duration
	)
	waits := 0
	needFC := true

	for _, frame := range frames[1:] {
		if needFC {
			block, spacing, err = e.awaitFlowControl(ctx, &waits)
			if err != nil {
				return err
			}
			needFC = false
		}
		if spacing > 0 {
			if err := sleep(ctx, spacing); err != nil {
				return err
			}
		}
		if err := e.tr.Send(ctx, frame); err != nil {
			return err
		}
		if block > 0 {
			block--
			if block == 0 {
				needFC = true
			}
		}
	}
	return nil
}

// awaitFlowControl blocks until the receiver sends a Continue, handling Wait
// and Overflow. It returns the granted block size (-1 for unlimited) and the
// decoded frame spacing.
func (e *Encoder) awaitFlowControl(ctx context.Context, waits *int) (int, time.Duration, error) {
	deadline := time.Now().Add(e.cfg.FlowControlTimeout)
	for {
		frame, err := e.tr.Recv(ctx, deadline)
		if err != nil {
			return 0, 0, err
		}
		if frame == nil {
			return 0, 0, ErrFlowControlTimeout
		}
		parsed, err := Parse(frame.Data)
		if err != nil {
			return 0, 0, err
		}
		fc, ok := parsed.(FlowControl)
		if !ok {
			// not a flow control frame, keep waiting
			continue
		}
		switch fc.Status {
		case FlowContinue:
			*waits = 0
			spacing, err := STminDuration(fc.STmin)
			if err != nil {
				return 0, 0, err
			}
			block := int(fc.BlockSize)
			if block == 0 {
				block = -1
			}
			return block, spacing, nil
		case FlowWait:
			*waits++
			if *waits > e.cfg.MaxWait {
				return 0, 0, ErrTooManyWaits
			}
			log.Printf("flow control wait %d/%d from 0x%03X", *waits, e.cfg.MaxWait, frame.Identifier)
			deadline = time.Now().Add(e.cfg.FlowControlTimeout)
		case FlowOverflow:
			return 0, 0, ErrFlowControlOverflow
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
