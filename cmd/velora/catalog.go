package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Hemanshudhaduk/Velora/internal/catalog"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

func newCatalogCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse categories and products",
	}

	var all bool
	categories := &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := c.app.catalog.Categories(cmd.Context(), !all)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "ID", "NAME", "SLUG")
			for _, cat := range cats {
				row(tw, cat.ID, cat.Name, cat.Slug)
			}
			return tw.Flush()
		},
	}
	categories.Flags().BoolVar(&all, "all", false, "include inactive categories")

	var (
		page      int
		sortBy    string
		minPrice  string
		maxPrice  string
		sizes     []string
		featLimit int
	)
	list := &cobra.Command{
		Use:   "list <category-id>",
		Short: "List products in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := catalog.ProductQuery{Page: page, SortBy: sortBy, Sizes: sizes}
			var err error
			if q.MinPrice, err = parsePrice(minPrice); err != nil {
				return err
			}
			if q.MaxPrice, err = parsePrice(maxPrice); err != nil {
				return err
			}
			cat, err := c.app.catalog.Category(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := c.app.catalog.ProductsByCategory(cmd.Context(), cat.ID, q)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", cat.Name)
			c.app.printProducts(result.Products)
			fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d\n", result.Pagination.Page, result.Pagination.TotalPages)
			return nil
		},
	}
	lf := list.Flags()
	lf.IntVar(&page, "page", 1, "page number")
	lf.StringVar(&sortBy, "sort", catalog.SortNewest, "newest, popular, price_low or price_high")
	lf.StringVar(&minPrice, "min", "", "minimum price")
	lf.StringVar(&maxPrice, "max", "", "maximum price")
	lf.StringSliceVar(&sizes, "size", nil, "only products in stock in these sizes")

	featured := &cobra.Command{
		Use:   "featured",
		Short: "List featured products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			products, err := c.app.catalog.Featured(cmd.Context(), featLimit)
			if err != nil {
				return err
			}
			c.app.printProducts(products)
			return nil
		},
	}
	featured.Flags().IntVar(&featLimit, "limit", 0, "number of products (default from config)")

	product := &cobra.Command{
		Use:   "product <product-id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.catalog.Product(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s", p.Name, c.app.money.Format(p.FinalPrice))
			if p.Discounted() {
				fmt.Fprintf(out, " (was %s)", c.app.money.Format(p.OriginalPrice))
			}
			fmt.Fprintln(out)
			if p.Description != "" {
				fmt.Fprintf(out, "\n%s\n", p.Description)
			}
			fmt.Fprintf(out, "\nSizes: %s\n", sizeList(p.Sizes))
			if c.app.cart.IsInWishlist(p.ID) {
				fmt.Fprintln(out, "In your wishlist.")
			}
			return nil
		},
	}

	cmd.AddCommand(categories, list, featured, product)
	return cmd
}

func parsePrice(raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}, domain.NewValidationError(map[string]string{"price": fmt.Sprintf("invalid price %q", raw)})
	}
	return decimal.NewNullDecimal(d), nil
}
