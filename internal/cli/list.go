package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <category>/<group>/<name>",
		Short: "list the artifacts available for a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMRL(args[0])
			if err != nil {
				return err
			}
			repo, err := repositoryFromFlags(cmd)
			if err != nil {
				return err
			}
			md, err := repo.Locate(cmd.Context(), m)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"VERSION", "PROPERTIES", "FILES"})
			for _, artifact := range md.Artifacts {
				properties := make([]string, 0, len(artifact.Properties))
				for k, v := range artifact.Properties {
					properties = append(properties, k+"="+v)
				}
				sort.Strings(properties)
				t.AppendRow(table.Row{
					artifact.Version,
					strings.Join(properties, ","),
					len(artifact.Files),
				})
			}
			t.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "%d artifact(s) for %s\n", len(md.Artifacts), m)
			return nil
		},
	}
}
