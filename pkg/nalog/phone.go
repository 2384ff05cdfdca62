package nalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

// MaxVerifyAttempts is how many rejected SMS codes a challenge survives.
// Challenge tokens are single-use and time-limited server-side, so after this
// many failures the caller has to request a new challenge.
const MaxVerifyAttempts = 3

// PhoneState is a step of the phone-challenge flow.
type PhoneState int

const (
	PhoneIdle PhoneState = iota
	PhoneChallengeSent
	PhoneVerified
	PhoneAuthenticated
	PhoneError
)

func (s PhoneState) String() string {
	switch s {
	case PhoneChallengeSent:
		return "challenge_sent"
	case PhoneVerified:
		return "verified"
	case PhoneAuthenticated:
		return "authenticated"
	case PhoneError:
		return "error"
	default:
		return "idle"
	}
}

// PhoneAuthenticator drives the phone login step by step:
//
//	Start(phone)  Idle -> ChallengeSent
//	Verify(code)  ChallengeSent -> Verified -> Authenticated
//
// The code is obtained by the caller between the two steps; the
// authenticator performs no I/O of its own besides the two requests.
// Any step may end in Error; Start begins a new flow from any state.
type PhoneAuthenticator struct {
	session *Session

	mu        sync.Mutex
	seq       uint64 // bumped by Start; stale requests do not commit
	state     PhoneState
	challenge *PhoneChallenge
	attempts  int
	err       error
}

// NewPhoneAuthenticator creates an authenticator installing tokens into session.
func NewPhoneAuthenticator(session *Session) *PhoneAuthenticator {
	return &PhoneAuthenticator{session: session}
}

// State returns the current step.
func (a *PhoneAuthenticator) State() PhoneState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Challenge returns the active challenge, or nil.
func (a *PhoneAuthenticator) Challenge() *PhoneChallenge {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.challenge
}

// Attempts returns the number of rejected codes for the active challenge.
func (a *PhoneAuthenticator) Attempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

// Err returns the error that moved the flow into PhoneError.
func (a *PhoneAuthenticator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Start requests an SMS code for phone.
func (a *PhoneAuthenticator) Start(ctx context.Context, phone string) (*PhoneChallenge, error) {
	const op = "auth.phone.start"

	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.state = PhoneIdle
	a.challenge = nil
	a.attempts = 0
	a.err = nil
	a.mu.Unlock()

	challenge, err := a.session.CreatePhoneChallenge(ctx, phone)

	a.mu.Lock()
	defer a.mu.Unlock()

	if seq != a.seq {
		if err != nil {
			return nil, err
		}
		return nil, nalogerr.Phone(op, "superseded by a newer phone challenge")
	}
	if err != nil {
		a.fail(err)
		return nil, err
	}

	a.state = PhoneChallengeSent
	a.challenge = challenge
	return challenge, nil
}

// Verify submits the SMS code for the active challenge. A rejected code
// keeps the challenge usable until MaxVerifyAttempts is reached. Transport
// failures are returned without using up an attempt.
func (a *PhoneAuthenticator) Verify(ctx context.Context, code string) (*Token, error) {
	const op = "auth.phone.verify"

	a.mu.Lock()
	switch a.state {
	case PhoneChallengeSent:
	case PhoneError:
		a.mu.Unlock()
		return nil, nalogerr.Phone(op, "phone challenge failed, start a new one")
	case PhoneAuthenticated:
		a.mu.Unlock()
		return nil, nalogerr.Phone(op, "already authenticated")
	default:
		a.mu.Unlock()
		return nil, nalogerr.Phone(op, "no active phone challenge")
	}
	if a.challenge.Expired(a.session.now()) {
		err := nalogerr.Phone(op, "phone challenge expired, start a new one")
		a.fail(err)
		a.mu.Unlock()
		return nil, err
	}
	seq := a.seq
	challenge := a.challenge
	a.mu.Unlock()

	t, err := a.session.exchangePhoneCode(ctx, challenge.Phone, challenge.ChallengeToken, code)

	a.mu.Lock()
	if seq != a.seq || a.state != PhoneChallengeSent {
		a.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, nalogerr.Phone(op, "phone challenge is no longer active")
	}
	if err != nil {
		switch nalogerr.KindOf(err) {
		case nalogerr.KindPhone:
			a.attempts++
			if a.attempts >= MaxVerifyAttempts {
				err = fmt.Errorf("%w (%d attempts used, start a new challenge)", err, a.attempts)
				a.fail(err)
			}
		case nalogerr.KindTransport:
			// the code was never judged
		default:
			a.fail(err)
		}
		a.mu.Unlock()
		return nil, err
	}
	a.state = PhoneVerified
	a.mu.Unlock()

	installErr := a.session.install(t)

	a.mu.Lock()
	defer a.mu.Unlock()

	if seq != a.seq {
		if installErr != nil {
			return nil, installErr
		}
		return t, nil
	}
	if installErr != nil {
		a.fail(installErr)
		return nil, installErr
	}
	a.state = PhoneAuthenticated
	a.challenge = nil
	return t, nil
}

func (a *PhoneAuthenticator) fail(err error) {
	a.state = PhoneError
	a.err = err
}
