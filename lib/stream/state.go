// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package stream

// State is the lifecycle position of a Subscription. Transitions are
// driven by the stream goroutine, except for the jump to StateClosed,
// which Disconnect performs synchronously.
type State int

const (
	// StateIdle means the subscription is constructed but not
	// connecting: either Connect has not been called, or the last
	// attempt found no auth token and settled without retrying.
	StateIdle State = iota

	// StateConnecting means a connect attempt is in flight.
	StateConnecting

	// StateOpen means a 2xx response arrived and frames are being
	// decoded.
	StateOpen

	// StateReconnecting means the last connection ended and a backoff
	// timer is pending.
	StateReconnecting

	// StateClosed means Disconnect was called. Closed is terminal: no
	// further transitions occur and no callbacks fire.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectedPolicy selects how a channel signals that its stream is
// live. Channels whose server emits an explicit "connected" control
// frame use ConnectedOnControlFrame; channels that start straight into
// domain frames use ConnectedOnFirstFrame, where the first
// successfully decoded domain frame doubles as the connected signal.
type ConnectedPolicy int

const (
	ConnectedOnControlFrame ConnectedPolicy = iota
	ConnectedOnFirstFrame
)

func (p ConnectedPolicy) String() string {
	switch p {
	case ConnectedOnControlFrame:
		return "control-frame"
	case ConnectedOnFirstFrame:
		return "first-frame"
	default:
		return "unknown"
	}
}
