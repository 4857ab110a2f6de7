package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"medsign/pkg/validate"
)

type verifyOutput struct {
	Verdict string           `json:"verdict"`
	Result  *validate.Result `json:"result,omitempty"`
}

// runVerify checks a signed container offline: digest, envelope and the
// embedded certificate's validity window. Revocation and registry status are
// only known to the service.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var atFlag string

	fs.StringVar(&inPath, "in", "", "signed document path")
	fs.StringVar(&outPath, "out", "", "verdict output path (default stdout)")
	fs.StringVar(&atFlag, "at", "", "verification time, RFC 3339 (default now)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in")
		return 1
	}

	now := time.Now().UTC()
	if atFlag != "" {
		parsed, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse --at: %v\n", err)
			return 1
		}
		now = parsed
	}

	signed, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read signed document: %v\n", err)
		return 1
	}

	result, err := validate.Offline(signed, now)
	if err != nil {
		if errors.Is(err, validate.ErrUnsigned) {
			if err := writeJSON(outPath, verifyOutput{Verdict: "unsigned"}); err != nil {
				fmt.Fprintf(os.Stderr, "write output: %v\n", err)
				return 1
			}
			return 2
		}
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}

	verdict := "valid"
	if !result.CryptoValid || !result.InWindow {
		verdict = "invalid"
	}
	if err := writeJSON(outPath, verifyOutput{Verdict: verdict, Result: result}); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	if verdict != "valid" {
		return 2
	}
	return 0
}
