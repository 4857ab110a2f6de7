package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"medsign/internal/infra/container"
	"medsign/internal/infra/envelope"
	"medsign/internal/infra/keymat"
)

// runSign signs a document offline with a local key container. The passphrase
// comes from MEDSIGN_PASSPHRASE or a file, never from a flag, so it stays out
// of process listings.
func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var containerPath string
	var passphraseFile string
	var capacity int

	fs.StringVar(&inPath, "in", "", "document path")
	fs.StringVar(&outPath, "out", "", "signed output path (default stdout)")
	fs.StringVar(&containerPath, "container", "", "key container path (PKCS#12 or PEM)")
	fs.StringVar(&passphraseFile, "passphrase-file", "", "file holding the container passphrase")
	fs.IntVar(&capacity, "capacity", container.DefaultCapacity, "reserved envelope capacity in bytes")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || containerPath == "" {
		fmt.Fprintln(os.Stderr, "sign requires --in and --container")
		return 1
	}

	passphrase := os.Getenv("MEDSIGN_PASSPHRASE")
	if passphraseFile != "" {
		raw, err := os.ReadFile(passphraseFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read passphrase file: %v\n", err)
			return 1
		}
		passphrase = strings.TrimRight(string(raw), "\r\n")
	}

	doc, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read document: %v\n", err)
		return 1
	}
	containerBytes, err := os.ReadFile(containerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read container: %v\n", err)
		return 1
	}

	material, err := keymat.NewLoader().Load(containerBytes, passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load key container: %v\n", err)
		return 1
	}
	defer material.Scrub()

	prepared, br, err := container.Reserve(doc, capacity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reserve placeholder: %v\n", err)
		return 1
	}
	digest, err := container.Digest(prepared, br)
	if err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		return 1
	}
	envelopeDER, _, err := envelope.NewService().Build(digest, material)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build envelope: %v\n", err)
		return 1
	}
	signed, err := container.Embed(prepared, br, envelopeDER)
	if err != nil {
		fmt.Fprintf(os.Stderr, "embed envelope: %v\n", err)
		return 1
	}

	if err := writeOutput(outPath, signed); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
