// Command orderwatch-keygen encrypts or decrypts an operator private key for
// use with the encrypted_key_path wallet configuration option.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/alanyoungcy/orderwatch/internal/crypto"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "encrypt":
		runEncrypt()
	case "decrypt":
		runDecrypt()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  orderwatch-keygen encrypt <out.json>   reads a hex private key and password from stdin")
	fmt.Fprintln(os.Stderr, "  orderwatch-keygen decrypt <in.json>    reads a password from stdin, prints the hex key")
}

func runEncrypt() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	outPath := os.Args[2]

	reader := bufio.NewReader(os.Stdin)
	fmt.Fprint(os.Stderr, "private key (hex): ")
	privateKeyHex, err := reader.ReadString('\n')
	must(err)
	fmt.Fprint(os.Stderr, "password: ")
	password, err := reader.ReadString('\n')
	must(err)

	blob, err := crypto.EncryptKey(trimNewline(privateKeyHex), trimNewline(password))
	must(err)
	must(os.WriteFile(outPath, blob, 0o600))
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
}

func runDecrypt() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	inPath := os.Args[2]

	data, err := os.ReadFile(inPath)
	must(err)

	reader := bufio.NewReader(os.Stdin)
	fmt.Fprint(os.Stderr, "password: ")
	password, err := reader.ReadString('\n')
	must(err)

	key, err := crypto.DecryptKey(data, trimNewline(password))
	must(err)
	fmt.Println(key)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
