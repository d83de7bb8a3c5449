// Command gen2fa generates a TOTP secret for AUTH_2FA_SECRET and prints the
// otpauth URL to enroll it in an authenticator app.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/pquerna/otp/totp"
)

func main() {
	issuer := flag.String("issuer", "authstarter", "issuer shown in the authenticator app")
	account := flag.String("account", "admin", "account name shown in the authenticator app")
	flag.Parse()

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      *issuer,
		AccountName: *account,
	})
	if err != nil {
		log.Fatalf("generating TOTP secret: %v", err)
	}

	fmt.Println("Secret: ", key.Secret())
	fmt.Println("URL:    ", key.URL())
}
