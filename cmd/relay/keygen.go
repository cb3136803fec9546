package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/identity"
	"github.com/alfredjeanlab/relay/internal/ui"
)

var keygenCmd = &cobra.Command{
	Use:     "keygen",
	Short:   "Generate a new identity key pair",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := identity.GenerateKey()
		if err != nil {
			return err
		}
		secret := identity.SecretKeyHex(key)
		pub := identity.PublicKeyHex(key)

		if jsonOutput {
			return printJSONLine(map[string]string{"secret_key": secret, "public_key": pub})
		}
		fmt.Printf("%s %s\n", ui.RenderMuted("secret:"), secret)
		fmt.Printf("%s %s\n", ui.RenderMuted("public:"), ui.RenderAccent(pub))
		return nil
	},
}
