package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"bigbag/internal/cache"
)

var (
	ErrInvalidCode     = errors.New("invalid or expired code")
	ErrTooManyAttempts = errors.New("too many verification attempts")
)

// MaxVerifyAttempts bounds guesses per phone within one code lifetime.
const MaxVerifyAttempts = 5

// CodeSender delivers a one-time code to a phone number.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the log. It stands in for an SMS gateway in
// development.
type LogSender struct{}

func (LogSender) SendCode(_ context.Context, phone, code string) error {
	slog.Info("OTP issued", "phone", phone, "code", code)
	return nil
}

// OTP issues and checks one-time login codes kept in the cache.
type OTP struct {
	cache  cache.Cache
	sender CodeSender
	ttl    time.Duration
	gen    func() (string, error)
}

func NewOTP(c cache.Cache, sender CodeSender, ttl time.Duration) *OTP {
	return &OTP{cache: c, sender: sender, ttl: ttl, gen: sixDigits}
}

func otpKey(phone string) string { return "otp:" + phone }

func attemptsKey(phone string) string { return "otp-verify:" + phone }

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Request replaces any pending code for phone with a fresh one.
func (o *OTP) Request(ctx context.Context, phone string) error {
	code, err := o.gen()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := o.cache.Set(ctx, otpKey(phone), []byte(code), o.ttl); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	return o.sender.SendCode(ctx, phone, code)
}

// Verify consumes the pending code for phone if code matches it. A wrong
// guess leaves the pending code in place until MaxVerifyAttempts is spent,
// after which the code is dropped.
func (o *OTP) Verify(ctx context.Context, phone, code string) error {
	if o.cache.IsRateLimited(ctx, attemptsKey(phone), MaxVerifyAttempts, o.ttl) {
		if err := o.cache.Delete(ctx, otpKey(phone)); err != nil {
			slog.Warn("OTP drop failed", "phone", phone, "error", err)
		}
		return ErrTooManyAttempts
	}
	stored, err := o.cache.Get(ctx, otpKey(phone))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrInvalidCode
		}
		return err
	}
	if subtle.ConstantTimeCompare(stored, []byte(code)) != 1 {
		return ErrInvalidCode
	}
	// GetDel makes the code single-use even under concurrent verifies.
	if _, err := o.cache.GetDel(ctx, otpKey(phone)); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrInvalidCode
		}
		return err
	}
	return nil
}
