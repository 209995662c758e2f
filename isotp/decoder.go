package isotp

import (
	"context"
	"fmt"
	"time"

	"github.com/roffe/gouds"
)

// Decoder reassembles complete payloads from the incoming frame stream of
// one module. It is either idle or assembling exactly one payload; it never
// yields a partial one.
type Decoder struct {
	tr      gouds.FrameTransport
	addr    gouds.ModuleAddress
	cfg     Config
	pending *pendingPayload
}

// pendingPayload is the reassembly state for one in-progress multi-frame
// receive. It is destroyed on completion, sequence mismatch or deadline
// expiry.
type pendingPayload struct {
	total     int
	collected []byte
	nextSeq   byte
	deadline  time.Time
}

func NewDecoder(tr gouds.FrameTransport, addr gouds.ModuleAddress, cfg Config) *Decoder {
	return &Decoder{
		tr:   tr,
		addr: addr,
		cfg:  cfg,
	}
}

// Reset discards any reassembly in progress.
func (d *Decoder) Reset() {
	d.pending = nil
}

// Feed advances the reassembly state machine with one frame. It returns a
// complete payload, or (nil, nil) when more frames are needed. When a first
// frame is observed the decoder transmits the flow-control answer to the
// module's request id.
func (d *Decoder) Feed(ctx context.Context, now time.Time, frame *gouds.CANFrame) ([]byte, error) {
	if d.pending != nil && now.After(d.pending.deadline) {
		d.pending = nil
		return nil, ErrReassemblyTimeout
	}

	parsed, err := Parse(frame.Data)
	if err != nil {
		d.pending = nil
		return nil, err
	}

	switch f := parsed.(type) {
	case Single:
		if d.pending != nil {
			d.pending = nil
			return nil, fmt.Errorf("%w: single frame", ErrInterleavedMessage)
		}
		out := make([]byte, len(f.Data))
		copy(out, f.Data)
		return out, nil

	case First:
		interleaved := d.pending != nil
		fc := FlowControl{Status: FlowContinue, BlockSize: d.cfg.BlockSize, STmin: d.cfg.STmin}
		if err := d.tr.Send(ctx, d.addr.NewFrame(fc.Bytes(d.cfg))); err != nil {
			d.pending = nil
			return nil, err
		}
		collected := make([]byte, 0, f.TotalLength)
		collected = append(collected, f.Data...)
		d.pending = &pendingPayload{
			total:     f.TotalLength,
			collected: collected,
			nextSeq:   1,
			deadline:  now.Add(d.cfg.ConsecutiveTimeout),
		}
		if interleaved {
			return nil, fmt.Errorf("%w: first frame", ErrInterleavedMessage)
		}
		return nil, nil

	case Consecutive:
		if d.pending == nil {
			return nil, ErrUnexpectedConsecutive
		}
		if f.Sequence != d.pending.nextSeq {
			want := d.pending.nextSeq
			d.pending = nil
			return nil, fmt.Errorf("%w: want %d got %d", ErrSequence, want, f.Sequence)
		}
		remain := d.pending.total - len(d.pending.collected)
		data := f.Data
		if len(data) > remain {
			data = data[:remain]
		}
		d.pending.collected = append(d.pending.collected, data...)
		if len(d.pending.collected) == d.pending.total {
			out := d.pending.collected
			d.pending = nil
			return out, nil
		}
		d.pending.nextSeq = (d.pending.nextSeq + 1) & 0x0F
		d.pending.deadline = now.Add(d.cfg.ConsecutiveTimeout)
		return nil, nil

	case FlowControl:
		// the peer's flow control frames are consumed by the encoder;
		// one surfacing here is ignored
		return nil, nil
	}
	return nil, fmt.Errorf("isotp: unhandled frame %T", parsed)
}

// Recv pumps the transport until a complete payload is reassembled or the
// deadline passes. A (nil, nil) return means the deadline elapsed; a
// reassembly still in progress at that point is kept. A reassembly whose
// consecutive-frame window runs out first reports ErrReassemblyTimeout.
func (d *Decoder) Recv(ctx context.Context, deadline time.Time) ([]byte, error) {
	for {
		wait := deadline
		if d.pending != nil && d.pending.deadline.Before(wait) {
			wait = d.pending.deadline
		}
		frame, err := d.tr.Recv(ctx, wait)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		if frame == nil {
			if d.pending != nil && now.After(d.pending.deadline) {
				d.pending = nil
				return nil, ErrReassemblyTimeout
			}
			if !now.Before(deadline) {
				return nil, nil
			}
			continue
		}
		payload, err := d.Feed(ctx, now, frame)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}
	}
}
