package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var code int
	switch os.Args[1] {
	case "sign":
		code = runSign(os.Args[2:])
	case "verify":
		code = runVerify(os.Args[2:])
	case "serve":
		code = runServe(os.Args[2:])
	default:
		usage()
		code = 1
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: medsign <sign|verify|serve> [flags]")
}
