package uds

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roffe/gouds"
	"github.com/roffe/gouds/transport/mock"
)

var testAddr = gouds.ModuleAddress{Name: "engine", RequestID: 0x7E0, ResponseID: 0x7E8}

func respFrame(data ...byte) *gouds.CANFrame {
	return gouds.NewFrame(testAddr.ResponseID, data)
}

// respondWith answers the first frame sent to the request id with the given
// frames and ignores every later one
func respondWith(frames ...*gouds.CANFrame) func(*gouds.CANFrame) []*gouds.CANFrame {
	done := false
	return func(f *gouds.CANFrame) []*gouds.CANFrame {
		if done || f.Identifier != testAddr.RequestID {
			return nil
		}
		done = true
		return frames
	}
}

func fastTiming() Option {
	return WithTiming(50*time.Millisecond, 50*time.Millisecond)
}

func TestClientReadDataByIdentifierSingleFrame(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(respFrame(0x04, 0x62, 0xF1, 0x90, 0x31, 0x00, 0x00, 0x00))
	c := New(tr, testAddr, fastTiming())

	value, err := c.ReadDataByIdentifier(context.Background(), 0xF190)
	if err != nil {
		t.Fatalf("ReadDataByIdentifier() error: %v", err)
	}
	if want := []byte{0x31}; !bytes.Equal(value, want) {
		t.Errorf("value = % X, want % X", value, want)
	}

	sent := tr.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sent))
	}
	if want := []byte{0x03, 0x22, 0xF1, 0x90, 0x00, 0x00, 0x00, 0x00}; !bytes.Equal(sent[0].Data, want) {
		t.Errorf("request frame = % X, want % X", sent[0].Data, want)
	}
}

// the multi-frame VIN scenario: the response is segmented and the client
// answers the first frame with a flow control
func TestClientReadVIN(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(
		respFrame(0x10, 0x14, 0x62, 0xF1, 0x90, 0x31, 0x43, 0x34),
		respFrame(0x21, 0x52, 0x4A, 0x46, 0x41, 0x47, 0x35, 0x46),
		respFrame(0x22, 0x43, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36),
	)
	c := New(tr, testAddr, fastTiming())

	value, err := c.ReadDataByIdentifier(context.Background(), 0xF190)
	if err != nil {
		t.Fatalf("ReadDataByIdentifier() error: %v", err)
	}
	if want := "1C4RJFAG5FC123456"; string(value) != want {
		t.Errorf("VIN = %q, want %q", value, want)
	}

	sent := tr.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d frames, want request + flow control", len(sent))
	}
	if sent[1].Data[0]>>4 != 0x3 {
		t.Errorf("second transmitted frame = % X, want a flow control", sent[1].Data)
	}
}

func TestClientStartSession(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(respFrame(0x06, 0x50, 0x03, 0x00, 0x19, 0x01, 0xF4, 0x00))
	c := New(tr, testAddr, fastTiming(), WithAdoptServerTimings())

	sess, err := c.StartSession(context.Background(), SessionExtended)
	if err != nil {
		t.Fatalf("StartSession() error: %v", err)
	}
	if sess.ID != SessionExtended {
		t.Errorf("session id = 0x%02X, want 0x03", sess.ID)
	}
	if sess.ServerP2 != 25*time.Millisecond {
		t.Errorf("server p2 = %v, want 25ms", sess.ServerP2)
	}
	if sess.ServerP2Star != 500*time.Millisecond {
		t.Errorf("server p2* = %v, want 500ms", sess.ServerP2Star)
	}
	p2, p2Star := c.Timings()
	if p2 != 25*time.Millisecond || p2Star != 500*time.Millisecond {
		t.Errorf("adopted timings = %v/%v, want 25ms/500ms", p2, p2Star)
	}
}

func TestClientNegativeResponse(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(respFrame(0x03, 0x7F, 0x22, 0x31, 0x00, 0x00, 0x00, 0x00))
	c := New(tr, testAddr, fastTiming())

	_, err := c.ReadDataByIdentifier(context.Background(), 0xF190)
	var neg *Negative
	if !errors.As(err, &neg) {
		t.Fatalf("error = %v, want *Negative", err)
	}
	if neg.Service != 0x22 {
		t.Errorf("service = 0x%02X, want 0x22", neg.Service)
	}
	if neg.Code != RequestOutOfRange {
		t.Errorf("code = %v, want RequestOutOfRange", neg.Code)
	}
}

func TestClientReadDTCs(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(
		respFrame(0x10, 0x0B, 0x59, 0x02, 0xFF, 0x03, 0x00, 0x00),
		respFrame(0x21, 0x08, 0x01, 0x71, 0x00, 0x08, 0x00, 0x00),
	)
	c := New(tr, testAddr, fastTiming())

	dtcs, err := c.ReadDTCs(context.Background())
	if err != nil {
		t.Fatalf("ReadDTCs() error: %v", err)
	}
	if len(dtcs) != 2 {
		t.Fatalf("got %d DTCs, want 2", len(dtcs))
	}
	if got := dtcs[0].String(); got != "P0300" {
		t.Errorf("dtc 0 = %s, want P0300", got)
	}
	if got := dtcs[1].String(); got != "P0171" {
		t.Errorf("dtc 1 = %s, want P0171", got)
	}
	for i, d := range dtcs {
		if !d.Confirmed() {
			t.Errorf("dtc %d not confirmed", i)
		}
	}
}

// pending responses are consumed internally, the caller only sees the final
// positive
func TestClientResponsePending(t *testing.T) {
	pendings := []*gouds.CANFrame{
		respFrame(0x03, 0x7F, 0x22, 0x78, 0x00, 0x00, 0x00, 0x00),
		respFrame(0x03, 0x7F, 0x22, 0x78, 0x00, 0x00, 0x00, 0x00),
		respFrame(0x03, 0x7F, 0x22, 0x78, 0x00, 0x00, 0x00, 0x00),
		respFrame(0x04, 0x62, 0xF1, 0x90, 0x31, 0x00, 0x00, 0x00),
	}
	tr := mock.New()
	tr.OnSend = respondWith(pendings...)
	c := New(tr, testAddr, fastTiming())

	value, err := c.ReadDataByIdentifier(context.Background(), 0xF190)
	if err != nil {
		t.Fatalf("ReadDataByIdentifier() error: %v", err)
	}
	if want := []byte{0x31}; !bytes.Equal(value, want) {
		t.Errorf("value = % X, want % X", value, want)
	}
}

func TestClientPendingCap(t *testing.T) {
	frames := make([]*gouds.CANFrame, 0, 4)
	for i := 0; i < 4; i++ {
		frames = append(frames, respFrame(0x03, 0x7F, 0x22, 0x78, 0x00, 0x00, 0x00, 0x00))
	}
	tr := mock.New()
	tr.OnSend = respondWith(frames...)
	c := New(tr, testAddr, fastTiming(), WithPendingMax(3))

	_, err := c.ReadDataByIdentifier(context.Background(), 0xF190)
	if !errors.Is(err, ErrPendingAbuse) {
		t.Fatalf("error = %v, want ErrPendingAbuse", err)
	}
}

func TestClientTimeout(t *testing.T) {
	tr := mock.New()
	c := New(tr, testAddr, WithTiming(20*time.Millisecond, 20*time.Millisecond))

	_, err := c.ReadDataByIdentifier(context.Background(), 0xF190)
	var te *gouds.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TimeoutError", err)
	}
	if te.Phase != gouds.PhaseP2 {
		t.Errorf("phase = %q, want %q", te.Phase, gouds.PhaseP2)
	}
}

// after a pending the re-armed window is P2*, which must also be the
// reported timeout phase
func TestClientTimeoutAfterPending(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(respFrame(0x03, 0x7F, 0x22, 0x78, 0x00, 0x00, 0x00, 0x00))
	c := New(tr, testAddr, WithTiming(20*time.Millisecond, 20*time.Millisecond))

	_, err := c.ReadDataByIdentifier(context.Background(), 0xF190)
	var te *gouds.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TimeoutError", err)
	}
	if te.Phase != gouds.PhaseP2Star {
		t.Errorf("phase = %q, want %q", te.Phase, gouds.PhaseP2Star)
	}
}

func TestClientTesterPresent(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(respFrame(0x02, 0x7E, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00))
	c := New(tr, testAddr, fastTiming())

	if err := c.TesterPresent(context.Background()); err != nil {
		t.Fatalf("TesterPresent() error: %v", err)
	}
	sent := tr.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sent))
	}
	// suppress-positive-response must not be set
	if want := []byte{0x02, 0x3E, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}; !bytes.Equal(sent[0].Data, want) {
		t.Errorf("request = % X, want % X", sent[0].Data, want)
	}
}

func TestClientMalformedEcho(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(respFrame(0x04, 0x62, 0xF1, 0x91, 0x31, 0x00, 0x00, 0x00))
	c := New(tr, testAddr, fastTiming())

	_, err := c.ReadDataByIdentifier(context.Background(), 0xF190)
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedResponseError", err)
	}
}

func TestClientRoutineControl(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(respFrame(0x05, 0x71, 0x01, 0xFF, 0x00, 0x10, 0x00, 0x00))
	c := New(tr, testAddr, fastTiming())

	record, err := c.RoutineControl(context.Background(), RoutineStart, 0xFF00, nil)
	if err != nil {
		t.Fatalf("RoutineControl() error: %v", err)
	}
	if want := []byte{0x10}; !bytes.Equal(record, want) {
		t.Errorf("record = % X, want % X", record, want)
	}
}

func TestClientRequestDownload(t *testing.T) {
	// the 11-byte request is segmented: grant the first frame with a flow
	// control and answer once the consecutive frame arrives
	tr := mock.New()
	tr.OnSend = func(f *gouds.CANFrame) []*gouds.CANFrame {
		if f.Identifier != testAddr.RequestID {
			return nil
		}
		switch f.Data[0] >> 4 {
		case 0x1:
			return []*gouds.CANFrame{respFrame(0x30, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)}
		case 0x2:
			return []*gouds.CANFrame{respFrame(0x04, 0x74, 0x20, 0x02, 0x00, 0x00, 0x00, 0x00)}
		}
		return nil
	}
	c := New(tr, testAddr, fastTiming())

	maxBlock, err := c.RequestDownload(context.Background(), 0x100000, 0x200)
	if err != nil {
		t.Fatalf("RequestDownload() error: %v", err)
	}
	if maxBlock != 0x200 {
		t.Errorf("maxBlock = %d, want 512", maxBlock)
	}
}

func TestClientClearDTCs(t *testing.T) {
	tr := mock.New()
	tr.OnSend = respondWith(respFrame(0x01, 0x54, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00))
	c := New(tr, testAddr, fastTiming())

	pos, err := c.ClearDTCs(context.Background())
	if err != nil {
		t.Fatalf("ClearDTCs() error: %v", err)
	}
	if pos.Service != ServiceClearDiagnosticInformation {
		t.Errorf("service = 0x%02X, want 0x14", pos.Service)
	}
	sent := tr.Sent()
	if want := []byte{0x04, 0x14, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00}; !bytes.Equal(sent[0].Data, want) {
		t.Errorf("request = % X, want % X", sent[0].Data, want)
	}
}

func TestClientCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := mock.New()
	c := New(tr, testAddr, fastTiming())

	if _, err := c.ReadDataByIdentifier(ctx, 0xF190); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(tr.Sent()) != 0 {
		t.Error("frames transmitted after cancellation")
	}

	// the client stays usable after a cancelled transaction
	tr.OnSend = respondWith(respFrame(0x04, 0x62, 0xF1, 0x90, 0x31, 0x00, 0x00, 0x00))
	if _, err := c.ReadDataByIdentifier(context.Background(), 0xF190); err != nil {
		t.Fatalf("ReadDataByIdentifier() after cancel error: %v", err)
	}
}
