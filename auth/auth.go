// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package auth implements the band's pairing challenge-response
// handshake.
package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/gatt"
	"github.com/kortschak/miband/internal/logutil"
	"github.com/kortschak/miband/internal/observability"
)

//go:generate go tool golang.org/x/tools/cmd/stringer -type State

// State is the progress of a handshake.
type State int

const (
	Start State = iota
	AwaitingRandomRequest
	AwaitingChallenge
	AwaitingConfirmation
	Authenticated
	Failed
)

// KeySize is the length of the shared key and of the challenge block.
const KeySize = 16

// DefaultIdle is the default gap without a notification after which an
// unfinished handshake fails.
const DefaultIdle = 2 * time.Second

// ErrKeySize is returned for keys that are not KeySize bytes.
var ErrKeySize = errors.New("auth: key must be 16 bytes")

// Cipher encrypts a single block with key. It must be deterministic and
// apply no chaining or padding.
type Cipher interface {
	EncryptBlock(key, block []byte) ([]byte, error)
}

// AES is AES-128 applied to one block in ECB mode.
type AES struct{}

// EncryptBlock implements Cipher.
func (AES) EncryptBlock(key, block []byte) ([]byte, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(block) != c.BlockSize() {
		return nil, fmt.Errorf("auth: block length %d is not %d", len(block), c.BlockSize())
	}
	dst := make([]byte, len(block))
	c.Encrypt(dst, block)
	return dst, nil
}

// Handshake commands and response codes.
var (
	cmdPair          = []byte{0x01, 0x00}
	cmdRequestRandom = []byte{0x02, 0x08}
	cmdSendKey       = []byte{0x01, 0x08}
	cmdSendEncrypted = []byte{0x03, 0x08}

	respPaired        = []byte{0x10, 0x01, 0x01}
	respPairPending   = []byte{0x10, 0x01, 0x04}
	respChallenge     = []byte{0x10, 0x02, 0x01}
	respAuthenticated = []byte{0x10, 0x03, 0x01}
	respKeyFailure    = []byte{0x10, 0x03, 0x04}
)

// Session is a single authentication attempt.
type Session struct {
	key    []byte
	cipher Cipher
	log    logrus.FieldLogger

	state  State
	rounds int
}

// NewSession returns a session for key. A nil cipher uses AES and a nil
// logger discards.
func NewSession(key []byte, cipher Cipher, log logrus.FieldLogger) (*Session, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	if cipher == nil {
		cipher = AES{}
	}
	return &Session{
		key:    bytes.Clone(key),
		cipher: cipher,
		log:    logutil.OrDiscard(log),
	}, nil
}

// State returns the current handshake state.
func (s *Session) State() State { return s.state }

// Rounds returns the number of responses handled.
func (s *Session) Rounds() int { return s.rounds }

// Begin returns the initial pairing request.
func (s *Session) Begin() gatt.Reply {
	s.state = AwaitingRandomRequest
	return gatt.Send(cmdPair)
}

// Handle advances the handshake with a response from the band and
// returns the reply to send.
func (s *Session) Handle(resp []byte) (gatt.Reply, error) {
	s.rounds++
	code := resp[:min(len(resp), 3)]
	s.log.WithFields(logrus.Fields{
		"state": s.state,
		"code":  fmt.Sprintf("%x", code),
	}).Debug("auth response")
	switch {
	case bytes.Equal(code, respPaired), bytes.Equal(code, respPairPending):
		s.state = AwaitingChallenge
		return gatt.Send(cmdRequestRandom), nil

	case bytes.Equal(code, respChallenge):
		if len(resp) != 3+KeySize {
			return s.fail(resp)
		}
		enc, err := s.cipher.EncryptBlock(s.key, resp[3:])
		if err != nil {
			s.state = Failed
			return gatt.Reply{}, fmt.Errorf("failed to encrypt challenge: %w", err)
		}
		s.state = AwaitingConfirmation
		return gatt.Send(cmdSendEncrypted, enc), nil

	case bytes.Equal(code, respAuthenticated):
		s.state = Authenticated
		return gatt.End(), nil

	case bytes.Equal(code, respKeyFailure):
		s.log.Warn("band rejected key, sending key")
		s.state = AwaitingRandomRequest
		return gatt.Send(cmdSendKey, s.key), nil

	default:
		return s.fail(resp)
	}
}

func (s *Session) fail(resp []byte) (gatt.Reply, error) {
	s.state = Failed
	return gatt.Reply{}, &gatt.UnexpectedResponseError{Op: "auth", Data: bytes.Clone(resp)}
}

// Run performs the handshake on the link's auth channel. It fails if no
// response arrives within idle of the last exchange.
func (s *Session) Run(ctx context.Context, link *gatt.Link, idle time.Duration) error {
	if idle <= 0 {
		idle = DefaultIdle
	}
	ended, err := link.Drive(ctx, gatt.Auth, s.Begin(), s.Handle, idle)
	switch {
	case err != nil:
		s.state = Failed
		observability.RecordAuth("error")
		return fmt.Errorf("failed to authenticate: %w", err)
	case !ended:
		prev := s.state
		s.state = Failed
		observability.RecordAuth("timeout")
		return fmt.Errorf("failed to authenticate: %w in state %s", gatt.ErrTimeout, prev)
	}
	observability.RecordAuth("ok")
	s.log.WithField("rounds", s.rounds).Info("authenticated")
	return nil
}

// Authenticate runs a new session with key over link.
func Authenticate(ctx context.Context, link *gatt.Link, key []byte, cipher Cipher, idle time.Duration, log logrus.FieldLogger) error {
	s, err := NewSession(key, cipher, log)
	if err != nil {
		return err
	}
	return s.Run(ctx, link, idle)
}
