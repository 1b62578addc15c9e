package smpp

import (
	"context"
	"testing"
	"time"

	"messagehub/internal/storage"
	"messagehub/internal/types"
)

func TestParseReceipt(t *testing.T) {
	text := "id:ext-1 sub:001 dlvrd:001 submit date:2601010000 done date:2601010001 stat:DELIVRD err:000 text:hi"
	r := parseReceipt(text)
	if r.id != "ext-1" || r.stat != "DELIVRD" || r.err != "000" {
		t.Fatalf("unexpected parse: %+v", r)
	}
}

func TestStatToStatus(t *testing.T) {
	cases := map[string]types.DeliveryStatus{
		"DELIVRD": types.StatusDelivered,
		"EXPIRED": types.StatusFailed,
		"REJECTD": types.StatusFailed,
	}
	for stat, want := range cases {
		got, ok := statToStatus(stat)
		if !ok || got != want {
			t.Errorf("statToStatus(%q) = %q, %v; want %q", stat, got, ok, want)
		}
	}

	if _, ok := statToStatus("ACCEPTD"); ok {
		t.Error("expected ACCEPTD to produce no transition")
	}
}

func TestCorrelator_MatchesAndUpdatesStatus(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	repo.Insert(ctx, &types.Message{
		ID: "msg-1", SubscriptionKey: "tenant-a", Content: "hi", Recipient: "+1",
		ChannelType: types.ChannelSMPP, Status: types.StatusSent,
	})

	c := NewCorrelator(repo, 3, testLogger(), nil)
	defer c.Stop()
	c.StoreCorrelation("msg-1", "ext-1")

	c.handleReceiptText("id:ext-1 stat:DELIVRD err:000")

	msg, err := repo.GetByIDForTenant(ctx, "tenant-a", "msg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status != types.StatusDelivered {
		t.Errorf("expected Delivered, got %s", msg.Status)
	}

	c.mu.Lock()
	_, stillPresent := c.byExternalID["ext-1"]
	c.mu.Unlock()
	if stillPresent {
		t.Error("expected correlation to be removed after a matched receipt")
	}
}

func TestCorrelator_NonTerminalReceiptDoesNotConsumeCorrelation(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	repo.Insert(ctx, &types.Message{
		ID: "msg-1", SubscriptionKey: "tenant-a", Content: "hi", Recipient: "+1",
		ChannelType: types.ChannelSMPP, Status: types.StatusSent,
	})

	c := NewCorrelator(repo, 3, testLogger(), nil)
	defer c.Stop()
	c.StoreCorrelation("msg-1", "ext-1")

	// An intermediate ACCEPTD receipt arrives first; it must not delete
	// the correlation entry or apply any status transition.
	c.handleReceiptText("id:ext-1 stat:ACCEPTD err:000")

	msg, err := repo.GetByIDForTenant(ctx, "tenant-a", "msg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status != types.StatusSent {
		t.Fatalf("expected status to remain Sent after a non-terminal receipt, got %s", msg.Status)
	}

	c.mu.Lock()
	_, stillPresent := c.byExternalID["ext-1"]
	c.mu.Unlock()
	if !stillPresent {
		t.Fatal("expected correlation to survive a non-terminal receipt")
	}

	// The real terminal receipt then arrives for the same external id and
	// must still match.
	c.handleReceiptText("id:ext-1 stat:DELIVRD err:000")

	msg, err = repo.GetByIDForTenant(ctx, "tenant-a", "msg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status != types.StatusDelivered {
		t.Fatalf("expected Delivered after the terminal receipt, got %s", msg.Status)
	}

	c.mu.Lock()
	_, stillPresent = c.byExternalID["ext-1"]
	c.mu.Unlock()
	if stillPresent {
		t.Error("expected correlation to be removed after the terminal receipt")
	}
}

func TestCorrelator_SweepRemovesStale(t *testing.T) {
	repo := storage.NewMemoryRepository()
	c := NewCorrelator(repo, 3, testLogger(), nil)
	defer c.Stop()

	c.mu.Lock()
	c.byExternalID["ext-old"] = correlation{internalID: "msg-old", recordedAt: time.Now().Add(-100 * 24 * time.Hour)}
	c.mu.Unlock()

	c.sweep()

	c.mu.Lock()
	_, present := c.byExternalID["ext-old"]
	c.mu.Unlock()
	if present {
		t.Error("expected stale correlation to be swept")
	}
}
