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

// Package smpp implements the SMPP Connection Pool (§4.7), DLR Correlator
// (§4.8), and SMPP Channel (§4.9).
package smpp

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linxGnu/gosmpp"
	"github.com/linxGnu/gosmpp/pdu"

	"messagehub/internal/config"
)

// SubmitResult is the outcome of one submit_sm call.
type SubmitResult struct {
	MessageID string
	Status    string // the command_status text, "OK" on success
}

// Client is the narrow surface the pool and channel need from a bound
// SMPP session, kept as an interface so the pool can be exercised without
// a live SMSC.
type Client interface {
	Bound() bool
	Submit(sourceAddr, destAddr, text string, registeredDelivery uint8) (SubmitResult, error)
	Close() error
}

// submitWait is time allowed for a submit_sm_resp to arrive before the
// submit is treated as failed.
const submitWait = 10 * time.Second

// sessionClient adapts a gosmpp.Session bound as a transceiver to the
// Client interface. gosmpp delivers every PDU (including submit_sm_resp)
// asynchronously via a single OnPDU callback, so responses are correlated
// back to their Submit call by sequence number.
type sessionClient struct {
	session *gosmpp.Session

	mu      sync.Mutex
	pending map[uint32]chan pdu.PDU
	bound   int32
}

// dial binds a new session per cfg, registering the deliver_sm callback
// before the bind completes, as required by §4.7.
func dial(cfg config.SMPPChannelConfig, onDeliverSM func(*pdu.DeliverSM)) (*sessionClient, error) {
	c := &sessionClient{pending: make(map[uint32]chan pdu.PDU)}

	auth := gosmpp.Auth{
		SMSC:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		SystemID:   cfg.SystemID,
		Password:   cfg.Password,
		SystemType: "",
	}

	dialer := gosmpp.NonTLSDialer
	if cfg.TLSEnabled {
		dialer = gosmpp.TLSDialer
	}

	session, err := gosmpp.NewSession(
		gosmpp.TRXConnector(dialer, auth),
		gosmpp.Settings{
			EnquireLink: time.Duration(cfg.EnquireLinkIntervalMs) * time.Millisecond,
			ReadTimeout: time.Duration(cfg.InactivityTimeoutMs) * time.Millisecond,
			OnPDU: func(p pdu.PDU, _ bool) {
				switch v := p.(type) {
				case *pdu.SubmitSMResp:
					c.resolve(v.SequenceNumber, v)
				case *pdu.DeliverSM:
					onDeliverSM(v)
				}
			},
			OnClosed: func(gosmpp.State) {
				atomic.StoreInt32(&c.bound, 0)
			},
		},
		time.Duration(cfg.Pool.RecoveryDelaySeconds)*time.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("smpp: bind failed: %w", err)
	}

	c.session = session
	atomic.StoreInt32(&c.bound, 1)
	return c, nil
}

func (c *sessionClient) Bound() bool {
	return atomic.LoadInt32(&c.bound) == 1
}

// resolve delivers a submit_sm_resp to whichever Submit call is waiting
// on its sequence number, if any.
func (c *sessionClient) resolve(seq uint32, resp pdu.PDU) {
	c.mu.Lock()
	ch, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.mu.Unlock()

	if ok {
		ch <- resp
	}
}

func (c *sessionClient) Submit(sourceAddr, destAddr, text string, registeredDelivery uint8) (SubmitResult, error) {
	if !c.Bound() {
		return SubmitResult{}, fmt.Errorf("smpp: session not bound")
	}

	submitSM := pdu.NewSubmitSM().(*pdu.SubmitSM)
	submitSM.SourceAddr = pdu.NewAddress()
	submitSM.SourceAddr.SetAddress(sourceAddr)
	submitSM.DestAddr = pdu.NewAddress()
	submitSM.DestAddr.SetAddress(destAddr)
	submitSM.RegisteredDelivery = registeredDelivery
	_ = submitSM.Message.SetMessageWithEncoding(text, pdu.GSM7BitEncoding{})

	wait := make(chan pdu.PDU, 1)
	seq := submitSM.SequenceNumber
	c.mu.Lock()
	c.pending[seq] = wait
	c.mu.Unlock()

	transceiver := c.session.Transceiver()
	if err := transceiver.Submit(submitSM); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return SubmitResult{}, err
	}

	select {
	case resp := <-wait:
		sm, ok := resp.(*pdu.SubmitSMResp)
		if !ok {
			return SubmitResult{}, fmt.Errorf("smpp: unexpected response type")
		}
		if sm.CommandStatus != 0 {
			return SubmitResult{}, fmt.Errorf("smpp: %s", sm.CommandStatus.String())
		}
		return SubmitResult{MessageID: sm.MessageID, Status: "OK"}, nil
	case <-time.After(submitWait):
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return SubmitResult{}, fmt.Errorf("smpp: submit_sm_resp timed out")
	}
}

func (c *sessionClient) Close() error {
	atomic.StoreInt32(&c.bound, 0)
	c.session.Close()
	return nil
}

// deliverSMText extracts the receipt text from a deliver_sm PDU per
// §4.8: prefer the decoded message field, else decode the short message
// bytes as UTF-8, else fall back to the PDU's string form.
func deliverSMText(d *pdu.DeliverSM) string {
	if msg, err := d.Message.GetMessage(); err == nil && msg != "" {
		return msg
	}
	if raw := d.Message.GetMessageData(); len(raw) > 0 {
		return string(raw)
	}
	return fmt.Sprintf("%v", d)
}
