package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <category>/<group>/<name>",
		Short: "select one artifact of a resource and print it",
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

			out, err := json.MarshalIndent(artifact, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	registerSelectionFlags(cmd)
	return cmd
}

func registerSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("version", "", "exact artifact version; empty selects the highest")
	cmd.Flags().StringArray("property", nil, "required property as key=value, repeatable")
}
