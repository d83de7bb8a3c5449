// Command hashpw bcrypt-hashes a password for use as AUTH_PASSWORD.
package main

import (
	"flag"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", 12, "bcrypt cost factor")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: hashpw [-cost N] <password>")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(flag.Arg(0)), *cost)
	if err != nil {
		log.Fatalf("hashing password: %v", err)
	}
	fmt.Println(string(hash))
}
