package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/99minutos/seedboard/internal/core/domain"
)

func newIdentityCmd() *cobra.Command {
	var name, seed string
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Print the identity a name and seed resolve to",
		Long: `Print the identity a name and seed resolve to. Use it to fill the
OPERATORS allow-list without posting first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || seed == "" {
				return fmt.Errorf("both --name and --seed are required")
			}
			id := domain.ResolveIdentity(name, seed)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s@%s\n", id, name, id)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&seed, "seed", "", "secret seed")
	return cmd
}
