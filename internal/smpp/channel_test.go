package smpp

import (
	"context"
	"testing"

	"github.com/linxGnu/gosmpp/pdu"

	"messagehub/internal/config"
	"messagehub/internal/storage"
	"messagehub/internal/types"
)

type submitFunc func(sourceAddr, destAddr, text string, registeredDelivery uint8) (SubmitResult, error)

type scriptedClient struct {
	submit submitFunc
	bound  bool
}

func (c *scriptedClient) Bound() bool { return c.bound }
func (c *scriptedClient) Submit(sourceAddr, destAddr, text string, registeredDelivery uint8) (SubmitResult, error) {
	return c.submit(sourceAddr, destAddr, text, registeredDelivery)
}
func (c *scriptedClient) Close() error { return nil }

func newTestChannel(t *testing.T, client Client) *Channel {
	repo := storage.NewMemoryRepository()
	cfg := config.SMPPChannelConfig{
		SourceAddress: "MessageHub",
		Pool:          config.PoolConfig{Min: 0, Max: 1, ConnectTimeoutMs: 50},
	}

	ch := &Channel{
		tenantKey:  "tenant-a",
		cfg:        cfg,
		correlator: NewCorrelator(repo, 3, testLogger(), nil),
		logger:     testLogger(),
	}
	ch.pool = &Pool{cfg: cfg, logger: testLogger()}
	ch.pool.dialFn = func(cfg config.SMPPChannelConfig, deliverSM func(*pdu.DeliverSM)) (Client, error) {
		return client, nil
	}
	return ch
}

func TestChannel_SendSuccess(t *testing.T) {
	client := &scriptedClient{bound: true, submit: func(src, dst, text string, registeredDelivery uint8) (SubmitResult, error) {
		return SubmitResult{MessageID: "ext-99", Status: "OK"}, nil
	}}
	ch := newTestChannel(t, client)

	result, err := ch.Send(context.Background(), types.MessageQueuedEvent{
		MessageID: "msg-1", Recipient: "+15551234567", Content: "hi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK || result.ExternalMessageID != "ext-99" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestChannel_ClassifyThrottled(t *testing.T) {
	ch := newTestChannel(t, &scriptedClient{bound: true})

	result, err := ch.classifyError("unexpected command status: ESME_RTHROTTLED")
	if err == nil || !result.Transient {
		t.Fatalf("expected transient throttled result, got %+v err=%v", result, err)
	}
}

func TestChannel_ClassifyPermanent(t *testing.T) {
	ch := newTestChannel(t, &scriptedClient{bound: true})

	result, err := ch.classifyError("unexpected command status: ESME_RINVDSTADR")
	if err == nil || result.Transient {
		t.Fatalf("expected non-transient failure, got %+v err=%v", result, err)
	}
}

func TestBackoffSeconds(t *testing.T) {
	cases := map[int32]int{0: 1, 1: 2, 3: 8, 6: 60, 10: 60}
	for n, want := range cases {
		if got := backoffSeconds(n); got != want {
			t.Errorf("backoffSeconds(%d) = %d, want %d", n, got, want)
		}
	}
}
