package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"lexipro/internal/infra/packets"
	"lexipro/internal/usecase"
)

// runPacketVerify checks a proof packet with nothing but the archive
// bytes. Output is machine-readable JSON; exit status 0 means every
// digest and chain link checked out.
func runPacketVerify(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "verify-proof-packet requires <packet.zip>")
		return 1
	}

	archive, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read packet: %v\n", err)
		return 1
	}

	verification, err := packets.Verify(context.Background(), archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify packet: %v\n", err)
		return 1
	}

	out := struct {
		OK       bool     `json:"ok"`
		Failures []string `json:"failures,omitempty"`
	}{OK: verification.OK, Failures: verification.Failures}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		return 1
	}
	fmt.Println(string(encoded))

	if !verification.OK {
		return 1
	}
	return 0
}

// runGenesisHash prints the chain genesis hash for a seed so operators
// can cross-check a packet manifest against their deployment config.
func runGenesisHash(args []string) int {
	seed := ""
	if len(args) > 0 {
		seed = args[0]
	}
	fmt.Println(usecase.GenesisHash(seed))
	return 0
}
