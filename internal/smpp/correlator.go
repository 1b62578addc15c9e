/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package smpp

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/linxGnu/gosmpp/pdu"

	"messagehub/internal/logging"
	"messagehub/internal/metrics"
	"messagehub/internal/storage"
	"messagehub/internal/types"
)

const sweepInterval = 1 * time.Hour

// receipt holds the parsed standard DLR fields (§4.8).
type receipt struct {
	id, stat, err, submitDate, doneDate, sub, dlvrd string
}

var dlrFieldPattern = regexp.MustCompile(`(id|sub|dlvrd|submit date|done date|stat|err|text):(\S+)`)

func parseReceipt(text string) receipt {
	var r receipt
	for _, m := range dlrFieldPattern.FindAllStringSubmatch(text, -1) {
		switch m[1] {
		case "id":
			r.id = m[2]
		case "stat":
			r.stat = m[2]
		case "err":
			r.err = m[2]
		case "submit date":
			r.submitDate = m[2]
		case "done date":
			r.doneDate = m[2]
		case "sub":
			r.sub = m[2]
		case "dlvrd":
			r.dlvrd = m[2]
		}
	}
	return r
}

// statToStatus maps the DLR `stat:` field to the §3 internal status DAG;
// the bool reports whether a transition should be applied at all.
func statToStatus(stat string) (types.DeliveryStatus, bool) {
	switch strings.ToUpper(stat) {
	case "DELIVRD":
		return types.StatusDelivered, true
	case "EXPIRED", "DELETED", "UNDELIV", "REJECTD":
		return types.StatusFailed, true
	default: // ACCEPTD, UNKNOWN, or anything else: no transition
		return "", false
	}
}

// correlation pairs an internal message id with when it was recorded, so
// the sweep can reclaim entries nobody ever received a receipt for.
type correlation struct {
	internalID string
	recordedAt time.Time
}

// Correlator tracks in-flight SMPP submissions per tenant so an
// asynchronous deliver_sm receipt can be matched back to the message row
// it concerns (§4.8).
type Correlator struct {
	repo    storage.MessageRepository
	logger  *logging.Logger
	metrics metrics.Provider

	retention time.Duration

	mu           sync.Mutex
	byExternalID map[string]correlation
	stop         chan struct{}
}

// NewCorrelator creates a Correlator and starts its hourly stale-entry
// sweep. metricsProvider may be nil.
func NewCorrelator(repo storage.MessageRepository, retentionDays int, logger *logging.Logger, metricsProvider metrics.Provider) *Correlator {
	days := retentionDays
	if days <= 0 {
		days = 3
	}

	c := &Correlator{
		repo:         repo,
		logger:       logger.WithComponent("smpp_dlr_correlator"),
		metrics:      metricsProvider,
		retention:    time.Duration(days) * 24 * time.Hour,
		byExternalID: make(map[string]correlation),
		stop:         make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// StoreCorrelation records a successful submit's internal/external id
// pair, called by the SMPP Channel immediately after a successful send.
func (c *Correlator) StoreCorrelation(internalID, externalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byExternalID[externalID] = correlation{internalID: internalID, recordedAt: time.Now()}
}

// HandleDeliverSM processes one deliver_sm PDU body: extracts the receipt
// text, parses the standard DLR fields, and — if the external id has a
// live correlation — applies the corresponding status update.
func (c *Correlator) HandleDeliverSM(d *pdu.DeliverSM) {
	c.handleReceiptText(deliverSMText(d))
}

// handleReceiptText is HandleDeliverSM's logic over already-extracted
// receipt text, split out so tests can drive it without constructing a
// real PDU body.
func (c *Correlator) handleReceiptText(text string) {
	r := parseReceipt(text)
	if r.id == "" {
		c.logger.Warnf("deliver_sm receipt had no id: field, discarding: %q", text)
		return
	}

	c.mu.Lock()
	corr, ok := c.byExternalID[r.id]
	c.mu.Unlock()

	if !ok {
		c.logger.LogDLR(r.id, "", r.stat, false)
		if c.metrics != nil {
			c.metrics.RecordDLR(r.stat, false)
		}
		return
	}

	status, transition := statToStatus(r.stat)
	c.logger.LogDLR(r.id, corr.internalID, r.stat, true)
	if c.metrics != nil {
		c.metrics.RecordDLR(r.stat, true)
	}
	if !transition {
		// Non-terminal receipts (e.g. ACCEPTD) leave the correlation live
		// so the eventual terminal DLR for the same external id can still
		// match it (§3/§4.8: the entry is removed only once a terminal
		// status is applied).
		return
	}

	c.mu.Lock()
	delete(c.byExternalID, r.id)
	c.mu.Unlock()

	errMsg := ""
	if status == types.StatusFailed {
		errMsg = "SMPP DLR stat=" + r.stat
		if r.err != "" && r.err != "000" {
			errMsg += " err=" + r.err
		}
	}

	if err := c.repo.UpdateStatus(context.Background(), corr.internalID, status, r.id, errMsg); err != nil {
		c.logger.Errorf(err, "failed to apply DLR status update for message %s", corr.internalID)
	}
}

func (c *Correlator) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Correlator) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for externalID, corr := range c.byExternalID {
		if now.Sub(corr.recordedAt) > c.retention {
			delete(c.byExternalID, externalID)
		}
	}
}

// Stop terminates the sweep goroutine.
func (c *Correlator) Stop() {
	close(c.stop)
}
