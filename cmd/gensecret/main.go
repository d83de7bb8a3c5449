// Command gensecret generates a random signing secret for JWT_SECRET.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
)

func main() {
	size := flag.Int("bytes", 48, "number of random bytes")
	flag.Parse()

	b := make([]byte, *size)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("reading random bytes: %v", err)
	}
	fmt.Println(base64.StdEncoding.EncodeToString(b))
}
