package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kabili207/mesh-telegram-bridge/pkg/auth"
)

func main() {
	username := flag.String("user", "meshdev", "Username of the embedded broker user")
	password := flag.String("password", "", "Password to hash, a random one is generated when empty")
	length := flag.Int("length", 16, "Length of the password in bytes (will be hex encoded, so output is 2x this)")
	flag.Parse()

	pass := *password
	if pass == "" {
		var err error
		pass, err = auth.RandomHex(*length)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating password: %v\n", err)
			os.Exit(1)
		}
	}

	hash, salt, err := auth.GenerateHashAndSalt(pass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("# Password: %s\n", pass)
	fmt.Println("mqtt:")
	fmt.Println("  embedded:")
	fmt.Println("    users:")
	fmt.Printf("      - username: %q\n", *username)
	fmt.Printf("        password_hash: %q\n", hash)
	fmt.Printf("        salt: %q\n", salt)
}
