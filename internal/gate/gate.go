// Package gate implements the local access code that guards edit, delete and
// export actions. It keeps casual hands off the ledger and is not a security
// boundary.
package gate

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
)

// DefaultCode is the built-in access code.
const DefaultCode = "1997"

// CodeLength is the number of digits the keypad collects before checking.
const CodeLength = 4

var (
	ErrMismatch    = errors.New("access code mismatch")
	ErrInvalidCode = errors.New("access code must be 4 digits")
	ErrNotDigit    = errors.New("keypad accepts digits only")
)

// Gate holds the configured code.
type Gate struct {
	code string
}

// New returns a Gate for code. An empty code selects DefaultCode.
func New(code string) (*Gate, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = DefaultCode
	}
	if !validCode(code) {
		return nil, ErrInvalidCode
	}
	return &Gate{code: code}, nil
}

func validCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Verify checks a complete code in one shot.
func (g *Gate) Verify(code string) error {
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(g.code)) != 1 {
		return ErrMismatch
	}
	return nil
}

// Biometric stands in for a platform biometric prompt and always succeeds.
func (g *Gate) Biometric() error {
	return nil
}

// Unlock types code on a fresh keypad and runs action when it matches. A code
// shorter or longer than CodeLength is a mismatch. action may be nil.
func (g *Gate) Unlock(code string, action func() error) error {
	code = strings.TrimSpace(code)
	if len(code) != CodeLength {
		return ErrMismatch
	}
	k := g.Keypad()
	k.Request(action)
	for _, d := range code {
		done, err := k.Press(d)
		if errors.Is(err, ErrNotDigit) {
			return ErrMismatch
		}
		if done {
			return err
		}
	}
	return ErrMismatch
}

// Keypad collects digits one at a time and runs the pending action once the
// entered code matches.
type Keypad struct {
	gate *Gate

	mu      sync.Mutex
	entered []byte
	pending func() error
}

// Keypad returns a fresh keypad bound to g.
func (g *Gate) Keypad() *Keypad {
	return &Keypad{gate: g}
}

// Request stores the privileged action to run after a successful entry and
// resets any digits already typed.
func (k *Keypad) Request(action func() error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending = action
	k.entered = k.entered[:0]
}

// Press adds one digit. It returns done=true when the fourth digit was
// entered. On a match the pending action runs and its error is returned; on a
// mismatch the input is reset and ErrMismatch is returned.
func (k *Keypad) Press(digit rune) (done bool, err error) {
	if digit < '0' || digit > '9' {
		return false, ErrNotDigit
	}

	k.mu.Lock()
	k.entered = append(k.entered, byte(digit))
	if len(k.entered) < CodeLength {
		k.mu.Unlock()
		return false, nil
	}
	code := string(k.entered)
	k.entered = k.entered[:0]
	action := k.pending
	k.pending = nil
	if err := k.gate.Verify(code); err != nil {
		// Keep the action so the user can retry.
		k.pending = action
		k.mu.Unlock()
		return true, err
	}
	k.mu.Unlock()

	if action == nil {
		return true, nil
	}
	return true, action()
}

// Clear drops typed digits. The pending action is kept.
func (k *Keypad) Clear() {
	k.mu.Lock()
	k.entered = k.entered[:0]
	k.mu.Unlock()
}

// Cancel drops typed digits and the pending action.
func (k *Keypad) Cancel() {
	k.mu.Lock()
	k.entered = k.entered[:0]
	k.pending = nil
	k.mu.Unlock()
}

// Entered returns the number of digits typed so far.
func (k *Keypad) Entered() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entered)
}
