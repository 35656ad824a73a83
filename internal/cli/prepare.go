package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newPrepareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare <category>/<group>/<name>",
		Short: "materialize an artifact's files into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMRL(args[0])
			if err != nil {
				return err
			}
			version, err := cmd.Flags().GetString("version")
			if err != nil {
				return err
			}
			properties, err := cmd.Flags().GetStringArray("property")
			if err != nil {
				return err
			}
			filter, err := parseProperties(properties)
			if err != nil {
				return err
			}

			repo, err := repositoryFromFlags(cmd)
			if err != nil {
				return err
			}
			artifact, err := repo.Resolve(cmd.Context(), m, version, filter)
			if err != nil {
				return err
			}
			if err := repo.Prepare(cmd.Context(), artifact); err != nil {
				return err
			}

			root, err := repo.CacheDirectory()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(root, filepath.FromSlash(artifact.ResourceURI())))
			return nil
		},
	}
	registerSelectionFlags(cmd)
	return cmd
}
