package uds

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/roffe/gouds"
	"github.com/roffe/gouds/isotp"
)

// Default timing windows.
const (
	DefaultP2         = 1000 * time.Millisecond
	DefaultP2Star     = 5000 * time.Millisecond
	DefaultPendingMax = 10
)

// Client sequences one request/response transaction at a time against a
// single module. Apart from the P2 / P2* windows, which StartSession may
// replace, it holds no state between transactions; two clients sharing one
// CAN channel must be serialised by the caller.
type Client struct {
	tr   gouds.FrameTransport
	addr gouds.ModuleAddress
	enc  *isotp.Encoder
	dec  *isotp.Decoder

	p2           time.Duration
	p2Star       time.Duration
	pendingMax   int
	adoptTimings bool
	tpCfg        isotp.Config
}

type Option func(*Client)

// WithTiming overrides the P2 / P2* response windows.
func WithTiming(p2, p2Star time.Duration) Option {
	return func(c *Client) {
		c.p2 = p2
		c.p2Star = p2Star
	}
}

// WithPendingMax caps consecutive responsePending answers before the
// transaction is abandoned.
func WithPendingMax(n int) Option {
	return func(c *Client) {
		c.pendingMax = n
	}
}

// WithIsoTpConfig overrides the transport-layer profile (padding, block
// size, st_min, window timeouts).
func WithIsoTpConfig(cfg isotp.Config) Option {
	return func(c *Client) {
		c.tpCfg = cfg
	}
}

// WithAdoptServerTimings makes StartSession take over the P2 / P2* values
// the ECU reports for the new session.
func WithAdoptServerTimings() Option {
	return func(c *Client) {
		c.adoptTimings = true
	}
}

func New(tr gouds.FrameTransport, addr gouds.ModuleAddress, opts ...Option) *Client {
	c := &Client{
		tr:         tr,
		addr:       addr,
		p2:         DefaultP2,
		p2Star:     DefaultP2Star,
		pendingMax: DefaultPendingMax,
		tpCfg:      isotp.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.enc = isotp.NewEncoder(tr, addr, c.tpCfg)
	c.dec = isotp.NewDecoder(tr, addr, c.tpCfg)
	tr.SetFilter(addr.ResponseID)
	return c
}

// Timings returns the response windows currently in effect.
func (c *Client) Timings() (p2, p2Star time.Duration) {
	return c.p2, c.p2Star
}

// Request runs one full transaction: serialise, segment, transmit, await
// the reassembled response and classify it. responsePending answers are
// consumed here, re-arming the deadline with P2* each time up to the cap;
// the caller never sees code 0x78.
func (c *Client) Request(ctx context.Context, req Request) (*Positive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.dec.Reset()
	if err := c.enc.Send(ctx, req.Bytes()); err != nil {
		return nil, fmt.Errorf("%s: %w", ServiceName(req.ServiceID), err)
	}

	deadline := time.Now().Add(c.p2)
	phase, window := gouds.PhaseP2, c.p2
	pending := 0
	for {
		payload, err := c.dec.Recv(ctx, deadline)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ServiceName(req.ServiceID), err)
		}
		if payload == nil {
			return nil, &gouds.TimeoutError{Phase: phase, Window: window, Frame: c.addr.ResponseID}
		}
		pos, neg := ParseResponse(req.ServiceID, payload)
		if neg != nil {
			if neg.Code == ResponsePending {
				pending++
				if pending > c.pendingMax {
					return nil, ErrPendingAbuse
				}
				log.Printf("%s: response pending %d/%d from %s", ServiceName(req.ServiceID), pending, c.pendingMax, c.addr)
				deadline = time.Now().Add(c.p2Star)
				phase, window = gouds.PhaseP2Star, c.p2Star
				continue
			}
			return nil, neg
		}
		return pos, nil
	}
}

// Session describes the outcome of a DiagnosticSessionControl request: the
// granted session and the response windows the server asks for.
type Session struct {
	ID           byte
	ServerP2     time.Duration
	ServerP2Star time.Duration
}

// StartSession switches the diagnostic session. When the client was built
// with WithAdoptServerTimings the reported windows replace P2 / P2*.
func (c *Client) StartSession(ctx context.Context, session byte) (*Session, error) {
	pos, err := c.Request(ctx, DiagnosticSessionControl(session))
	if err != nil {
		return nil, err
	}
	if len(pos.Body) < 1 {
		return nil, &MalformedResponseError{Service: pos.Service, Reason: "missing session echo", Raw: pos.Raw}
	}
	if pos.Body[0] != session {
		return nil, &MalformedResponseError{
			Service: pos.Service,
			Reason:  fmt.Sprintf("session echo 0x%02X, want 0x%02X", pos.Body[0], session),
			Raw:     pos.Raw,
		}
	}
	out := &Session{ID: pos.Body[0]}
	if len(pos.Body) >= 5 {
		out.ServerP2 = time.Duration(binary.BigEndian.Uint16(pos.Body[1:3])) * time.Millisecond
		out.ServerP2Star = time.Duration(binary.BigEndian.Uint16(pos.Body[3:5])) * time.Millisecond
		if c.adoptTimings && out.ServerP2 > 0 && out.ServerP2Star > 0 {
			log.Printf("adopting server timings p2=%s p2*=%s", out.ServerP2, out.ServerP2Star)
			c.p2 = out.ServerP2
			c.p2Star = out.ServerP2Star
		}
	}
	return out, nil
}

// ReadDataByIdentifier reads one identifier and returns the value bytes
// after the did echo.
func (c *Client) ReadDataByIdentifier(ctx context.Context, did uint16) ([]byte, error) {
	pos, err := c.Request(ctx, ReadDataByIdentifier(did))
	if err != nil {
		return nil, err
	}
	if len(pos.Body) < 2 {
		return nil, &MalformedResponseError{Service: pos.Service, Reason: "missing did echo", Raw: pos.Raw}
	}
	if echo := binary.BigEndian.Uint16(pos.Body[:2]); echo != did {
		return nil, &MalformedResponseError{
			Service: pos.Service,
			Reason:  fmt.Sprintf("did echo 0x%04X, want 0x%04X", echo, did),
			Raw:     pos.Raw,
		}
	}
	return pos.Body[2:], nil
}

// ReadDTCs fetches the codes matching all status bits.
func (c *Client) ReadDTCs(ctx context.Context) ([]DTC, error) {
	pos, err := c.Request(ctx, ReadDTCInformation(ReportDTCByStatusMask, 0xFF))
	if err != nil {
		return nil, err
	}
	return ParseDTCRecords(pos.Body), nil
}

// ClearDTCs erases all DTC groups and returns the raw response.
func (c *Client) ClearDTCs(ctx context.Context) (*Positive, error) {
	return c.Request(ctx, ClearDiagnosticInformation(ClearAllDTCGroups))
}

// EcuReset requests a reset and returns the raw response. There is no
// automatic retransmit; the caller waits out the reboot.
func (c *Client) EcuReset(ctx context.Context, kind byte) (*Positive, error) {
	return c.Request(ctx, EcuReset(kind))
}

// TesterPresent keeps the session alive. Suppress-positive-response is not
// set so success stays observable.
func (c *Client) TesterPresent(ctx context.Context) error {
	pos, err := c.Request(ctx, TesterPresent(false))
	if err != nil {
		return err
	}
	if len(pos.Body) < 1 || pos.Body[0] != 0x00 {
		return &MalformedResponseError{Service: pos.Service, Reason: "missing sub-function echo", Raw: pos.Raw}
	}
	return nil
}

// WriteDataByIdentifier writes one identifier and returns the raw response;
// ECUs vary in whether they echo the did.
func (c *Client) WriteDataByIdentifier(ctx context.Context, did uint16, value []byte) (*Positive, error) {
	return c.Request(ctx, WriteDataByIdentifier(did, value))
}

// RoutineControl starts, stops or polls a routine and returns the routine
// status record.
func (c *Client) RoutineControl(ctx context.Context, sub byte, routineID uint16, params []byte) ([]byte, error) {
	pos, err := c.Request(ctx, RoutineControl(sub, routineID, params))
	if err != nil {
		return nil, err
	}
	if len(pos.Body) < 3 {
		return nil, &MalformedResponseError{Service: pos.Service, Reason: "short routine echo", Raw: pos.Raw}
	}
	want := []byte{sub, byte(routineID >> 8), byte(routineID)}
	if !bytes.Equal(pos.Body[:3], want) {
		return nil, &MalformedResponseError{
			Service: pos.Service,
			Reason:  fmt.Sprintf("routine echo % X, want % X", pos.Body[:3], want),
			Raw:     pos.Raw,
		}
	}
	return pos.Body[3:], nil
}

// RequestDownload announces a transfer to the ECU and returns the maximum
// block length the ECU accepts for TransferData.
func (c *Client) RequestDownload(ctx context.Context, address, size uint32) (int, error) {
	pos, err := c.Request(ctx, RequestDownload(address, size))
	if err != nil {
		return 0, err
	}
	if len(pos.Body) < 2 {
		return 0, &MalformedResponseError{Service: pos.Service, Reason: "short download response", Raw: pos.Raw}
	}
	n := int(pos.Body[0] >> 4)
	if n == 0 || len(pos.Body) < 1+n {
		return 0, &MalformedResponseError{Service: pos.Service, Reason: "bad block length format", Raw: pos.Raw}
	}
	maxBlock := 0
	for _, b := range pos.Body[1 : 1+n] {
		maxBlock = maxBlock<<8 | int(b)
	}
	return maxBlock, nil
}

// TransferData sends one block and returns any transfer response parameters
// after the block counter echo.
func (c *Client) TransferData(ctx context.Context, blockSeq byte, chunk []byte) ([]byte, error) {
	pos, err := c.Request(ctx, TransferData(blockSeq, chunk))
	if err != nil {
		return nil, err
	}
	if len(pos.Body) < 1 || pos.Body[0] != blockSeq {
		return nil, &MalformedResponseError{Service: pos.Service, Reason: "block counter mismatch", Raw: pos.Raw}
	}
	return pos.Body[1:], nil
}

// RequestTransferExit closes a transfer opened with RequestDownload.
func (c *Client) RequestTransferExit(ctx context.Context) error {
	_, err := c.Request(ctx, RequestTransferExit())
	return err
}
