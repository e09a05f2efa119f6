package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "verify-proof-packet":
		return runPacketVerify(args[2:])
	case "genesis-hash":
		return runGenesisHash(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "lexipro"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s verify-proof-packet <packet.zip>\n", name)
	fmt.Fprintf(os.Stderr, "  %s genesis-hash [seed]\n", name)
}
