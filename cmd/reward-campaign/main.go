package main

import (
	"fmt"
	"os"

	"rewardcampaign/cmd/internal/passphrase"
	"rewardcampaign/services/campaignctl"
)

func main() {
	err := campaignctl.Main(os.Args[1:], campaignctl.WithPassphrase(func(envVar string) (string, error) {
		return passphrase.NewSource(envVar, "campaign signer").Get()
	}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
