package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/datasheet"
	"github.com/kalambet/partsbin/internal/inventory"
)

var componentCmd = &cobra.Command{
	Use:     "component",
	Aliases: []string{"c"},
	Short:   "Manage components in the active inventory",
}

var componentAddCmd = &cobra.Command{
	Use:   "add <part-number>",
	Short: "Add a component",
	Long: `Add a component to the active inventory.

Examples:
  partsbin component add RC0805-10K --type Resistor --value "Resistance: 10k, Tolerance: 1%" --quantity 100
  partsbin component add NE555 --type ic --quantity 5 --location "Drawer 2"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		value, _ := cmd.Flags().GetString("value")
		qty, _ := cmd.Flags().GetInt("quantity")
		purchase, _ := cmd.Flags().GetString("purchase")
		ds, _ := cmd.Flags().GetString("datasheet")
		location, _ := cmd.Flags().GetString("location")
		notes, _ := cmd.Flags().GetString("notes")
		image, _ := cmd.Flags().GetString("image")

		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			c, err := svc.AddFromValue(ctx, catalog.Component{
				PartNumber:   args[0],
				Type:         typ,
				Quantity:     qty,
				PurchaseURL:  purchase,
				DatasheetURL: ds,
				Location:     location,
				Notes:        notes,
				ImagePath:    image,
			}, value)
			if err != nil {
				return err
			}
			printSuccess("Added %s (%s) x%d", c.PartNumber, a.registry.DisplayName(c.Type), c.Quantity)
			return nil
		})
	},
}

var componentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List components",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := inventory.Filter{}
		f.Type, _ = cmd.Flags().GetString("type")
		f.Search, _ = cmd.Flags().GetString("search")
		f.Limit, _ = cmd.Flags().GetInt("limit")
		if cmd.Flags().Changed("low-stock") {
			n, _ := cmd.Flags().GetInt("low-stock")
			f.LowStock = &n
		}

		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			cs, err := svc.List(ctx, f)
			if err != nil {
				return err
			}
			if len(cs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No components found.")
				return nil
			}
			printComponents(cmd.OutOrStdout(), a.registry, cs)
			return nil
		})
	},
}

var componentShowCmd = &cobra.Command{
	Use:   "show <id|part-number>",
	Short: "Show a single component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			c, err := svc.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			printComponent(cmd.OutOrStdout(), a.registry, c)
			return nil
		})
	},
}

var componentUpdateCmd = &cobra.Command{
	Use:   "update <id|part-number>",
	Short: "Update fields of a component",
	Long: `Update fields of a component. Only the given flags are changed.

Examples:
  partsbin component update NE555 --location "Drawer 3"
  partsbin component update RC0805-10K --value "Resistance: 10k, Tolerance: 5%"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := inventory.Patch{}
		str := func(flag string) *string {
			if !cmd.Flags().Changed(flag) {
				return nil
			}
			v, _ := cmd.Flags().GetString(flag)
			return &v
		}
		p.PartNumber = str("part-number")
		p.Type = str("type")
		p.Value = str("value")
		p.PurchaseURL = str("purchase")
		p.DatasheetURL = str("datasheet")
		p.Location = str("location")
		p.Notes = str("notes")
		p.ImagePath = str("image")
		if cmd.Flags().Changed("quantity") {
			q, _ := cmd.Flags().GetInt("quantity")
			p.Quantity = &q
		}

		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			c, err := svc.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			if c, err = svc.Update(ctx, c.ID, p); err != nil {
				return err
			}
			printSuccess("Updated %s", c.PartNumber)
			return nil
		})
	},
}

func quantityCommand(use, short string, restock bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id|part-number> <quantity>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return apperror.NewInvalidInput("quantity must be a whole number, got %q", args[1])
			}
			return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
				c, err := svc.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				if restock {
					c, err = svc.AddQuantity(ctx, c.ID, n)
				} else {
					c, err = svc.RemoveQuantity(ctx, c.ID, n)
				}
				if err != nil {
					return err
				}
				printSuccess("%s: %d in stock", c.PartNumber, c.Quantity)
				return nil
			})
		},
	}
}

var componentTakeCmd = quantityCommand("take", "Remove units from stock", false)

var componentRestockCmd = quantityCommand("restock", "Add units to stock", true)

var componentDeleteCmd = &cobra.Command{
	Use:     "delete <id|part-number>",
	Aliases: []string{"rm"},
	Short:   "Delete a component",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			c, err := svc.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			if err := svc.Delete(ctx, c.ID); err != nil {
				return err
			}
			printSuccess("Deleted %s", c.PartNumber)
			return nil
		})
	},
}

var componentDatasheetCmd = &cobra.Command{
	Use:   "datasheet <id|part-number> <file.pdf>",
	Short: "Attach a PDF datasheet and store a text excerpt in the notes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxChars, _ := cmd.Flags().GetInt("max-chars")
		link, _ := cmd.Flags().GetString("link")

		ex, err := datasheet.ExtractFile(args[1], maxChars)
		if err != nil {
			return apperror.NewInvalidInput("%v", err)
		}
		if link == "" {
			link = args[1]
		}

		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			c, err := svc.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			if _, err := svc.Update(ctx, c.ID, inventory.Patch{DatasheetURL: &link, Notes: &ex.Text}); err != nil {
				return err
			}
			msg := fmt.Sprintf("Stored %d characters from %d page(s) for %s", len([]rune(ex.Text)), ex.Pages, c.PartNumber)
			if ex.Truncated {
				msg += " (truncated)"
			}
			printSuccess("%s", msg)
			return nil
		})
	},
}

func addComponentFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "category name or id")
	cmd.Flags().String("value", "", `attribute values, e.g. "Resistance: 10k, Tolerance: 1%"`)
	cmd.Flags().Int("quantity", 0, "quantity in stock")
	cmd.Flags().String("purchase", "", "purchase link")
	cmd.Flags().String("datasheet", "", "datasheet link")
	cmd.Flags().String("location", "", "storage location")
	cmd.Flags().String("notes", "", "free-form notes")
	cmd.Flags().String("image", "", "path to a picture of the part")
}

func init() {
	addComponentFlags(componentAddCmd)
	componentAddCmd.MarkFlagRequired("type")

	addComponentFlags(componentUpdateCmd)
	componentUpdateCmd.Flags().String("part-number", "", "new part number")

	componentListCmd.Flags().String("type", "", "only this category")
	componentListCmd.Flags().String("search", "", "substring to search for")
	componentListCmd.Flags().Int("low-stock", 0, "only components with at most this quantity")
	componentListCmd.Flags().Int("limit", 0, "maximum number of rows")

	componentDatasheetCmd.Flags().Int("max-chars", datasheet.DefaultMaxChars, "maximum characters stored in the notes")
	componentDatasheetCmd.Flags().String("link", "", "datasheet link to record (default: the file path)")

	componentCmd.AddCommand(
		componentAddCmd,
		componentListCmd,
		componentShowCmd,
		componentUpdateCmd,
		componentTakeCmd,
		componentRestockCmd,
		componentDeleteCmd,
		componentDatasheetCmd,
	)
}
