package main

import (
	"strings"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
	"github.com/spf13/cobra"
)

func searchCMD(cfgPath *string) *cobra.Command {
	var topK, recencyDays int
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Run one web search the way the research loop would",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger := cfg.General.NewLogger(cmd.ErrOrStderr())
			provider := newSearchProvider(cfg, logger, nil)
			resp := provider.Search(cmd.Context(), web_search.Query{
				Query:       strings.Join(args, " "),
				TopK:        topK,
				RecencyDays: recencyDays,
			})
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", web_search.DefaultTopK, "number of results (1-20)")
	cmd.Flags().IntVar(&recencyDays, "recency-days", web_search.DefaultRecencyDays, "only results from the last N days (1-365)")
	return cmd
}
