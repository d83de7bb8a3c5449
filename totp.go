package main

import (
	"regexp"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpCodePattern = regexp.MustCompile(`^\d{6}$`)

// totpOpts is shared by every verification site: 6 digits, 30s steps, and a
// skew of one step in either direction. Login and password change use the
// same window.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// verifyTOTP checks a 6-digit code against a base32 secret. Anything that is
// not six decimal digits, and any undecodable secret, simply fails.
func verifyTOTP(code, secret string) bool {
	if !totpCodePattern.MatchString(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totpOpts)
	return err == nil && ok
}
