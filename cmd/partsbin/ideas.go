package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/ideas"
	"github.com/kalambet/partsbin/internal/inventory"
)

var ideasCmd = &cobra.Command{
	Use:   "ideas [id|part-number]...",
	Short: "Ask a language model for project ideas using selected components",
	Long: `Ask a language model for project ideas using selected components.

Examples:
  partsbin ideas NE555 LED-R5
  partsbin ideas --all
  partsbin ideas --type Sensor`,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		typ, _ := cmd.Flags().GetString("type")
		if len(args) == 0 && !all && typ == "" {
			return apperror.NewInvalidInput("select components by id or part number, or use --all or --type")
		}

		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			var cs []catalog.Component
			if len(args) > 0 {
				for _, id := range args {
					c, err := svc.Lookup(ctx, id)
					if err != nil {
						return err
					}
					cs = append(cs, c)
				}
			} else {
				var err error
				if cs, err = svc.List(ctx, inventory.Filter{Type: typ}); err != nil {
					return err
				}
			}

			ideaSvc := a.ideaService(ctx)
			printStep("Asking for ideas with %d component(s)...", len(cs))

			res := ideaSvc.SuggestAsync(ctx, cs)
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			start := time.Now()
			for {
				select {
				case r := <-res:
					if r.Err != nil {
						return r.Err
					}
					fmt.Fprintln(cmd.OutOrStdout(), r.Text)
					return nil
				case <-ticker.C:
					printStep("still waiting (%s)", time.Since(start).Round(time.Second))
				}
			}
		})
	},
}

var ideasModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the OpenRouter API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			opts := a.ideaOptions(ctx)
			if opts.Provider != "" && opts.Provider != ideas.ProviderOpenRouter {
				return apperror.NewInvalidInput("listing models is only supported for the %s provider", ideas.ProviderOpenRouter)
			}
			if opts.APIKey == "" {
				return apperror.NewInvalidInput("%s", ideas.UserMessage(ideas.ErrMissingAPIKey))
			}
			client := ideas.NewOpenRouterWithBaseURL(opts.APIKey, opts.Model, opts.BaseURL)

			ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
			models, err := client.ListModels(ctx)
			if err != nil {
				return apperror.NewUpstream(ideas.UserMessage(err), err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\n", m.ID, m.Name)
			}
			return tw.Flush()
		})
	},
}

func init() {
	ideasCmd.Flags().Bool("all", false, "use every component in the active inventory")
	ideasCmd.Flags().String("type", "", "use every component of this category")
	ideasCmd.AddCommand(ideasModelsCmd)
}
