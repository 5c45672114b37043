package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/dataset"
	"github.com/IshaanNene/NewsLens/internal/types"
)

var (
	clustersNewspaper []string
	clustersCategory  []string
	clustersArticles  bool
)

// clustersCmd creates the "clusters" subcommand.
func clustersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Show the current clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			snap, err := dataset.LoadCurrent(cfg.Data.ClusteredDir())
			if errors.Is(err, types.ErrNoData) {
				fmt.Println("No data yet. Run `newslens run` first.")
				return nil
			}
			if err != nil {
				return err
			}

			filter := dataset.Filter{Newspapers: clustersNewspaper, Categories: clustersCategory}
			clusters := snap.Clusters(filter, clustersArticles)

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.SetTitle(fmt.Sprintf("Generation %s (%s)", snap.Generation, snap.UpdatedAt.Format("2006-01-02 15:04")))
			t.AppendHeader(table.Row{"Cluster", "Size", "Keywords", "Categories", "Newspapers"})
			total := 0
			for _, c := range clusters {
				total += c.Size
				t.AppendRow(table.Row{c.ID, c.Size, snap.Label(c.ID), counts(c.Categories), counts(c.Newspapers)})
			}
			t.AppendFooter(table.Row{"", total})
			t.Render()

			if clustersArticles {
				for _, c := range clusters {
					fmt.Printf("\nCluster %d\n", c.ID)
					for _, a := range c.Articles {
						fmt.Printf("  %s  %-20s %s\n", dateOrDash(a.Date), a.Newspaper, a.Title)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&clustersNewspaper, "newspaper", nil, "only count these newspapers")
	cmd.Flags().StringSliceVar(&clustersCategory, "category", nil, "only count these categories")
	cmd.Flags().BoolVarP(&clustersArticles, "articles", "a", false, "list the articles of each cluster")
	return cmd
}

// counts renders a distribution as "name=n" pairs, largest first.
func counts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ", ")
}

func dateOrDash(d string) string {
	if d == "" {
		return "----------"
	}
	return d
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("NewsLens %s\n", config.Version)
		},
	}
}
