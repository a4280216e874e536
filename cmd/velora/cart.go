package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Hemanshudhaduk/Velora/internal/cart"
	"github.com/Hemanshudhaduk/Velora/internal/catalog"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

func newCartCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "View and change the shopping cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.cart.RefreshCart(cmd.Context()); err != nil {
				return err
			}
			c.app.printCart()
			return nil
		},
	}

	var size string
	var qty int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if size == "" {
				p, err := c.app.catalog.Product(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				first, ok := catalog.FirstAvailableSize(p)
				if !ok {
					return domain.ErrOutOfStock
				}
				size = first
			}
			if err := c.app.cart.AddToCart(cmd.Context(), args[0], size, qty); err != nil {
				return err
			}
			c.app.printCart()
			return nil
		},
	}
	add.Flags().StringVar(&size, "size", "", "size to add (defaults to the first size in stock)")
	add.Flags().IntVar(&qty, "qty", 1, "quantity")

	update := &cobra.Command{
		Use:   "update <cart-item-id> <quantity>",
		Short: "Change a line's quantity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return domain.NewValidationError(map[string]string{"quantity": "quantity must be a number"})
			}
			if err := updateCartLine(cmd.Context(), c.app.cart, args[0], n); err != nil {
				return err
			}
			c.app.printCart()
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <cart-item-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.cart.RemoveFromCart(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.app.printCart()
			return nil
		},
	}

	cmd.AddCommand(add, update, remove)
	return cmd
}

// updateCartLine checks the line id and stock limit against the backend's cart rather
// than the snapshot left by an earlier run.
func updateCartLine(ctx context.Context, store *cart.Store, cartItemID string, quantity int) error {
	if err := store.RefreshCart(ctx); err != nil {
		return err
	}
	return store.UpdateCartQuantity(ctx, cartItemID, quantity)
}

func newWishlistCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "View and change the wishlist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.cart.RefreshWishlist(cmd.Context()); err != nil {
				return err
			}
			c.app.printWishlist()
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Save a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.cart.RefreshWishlist(cmd.Context()); err != nil {
				return err
			}
			if c.app.cart.IsInWishlist(args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), "Already in your wishlist.")
				return nil
			}
			if err := c.app.cart.AddToWishlist(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.app.printWishlist()
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <wishlist-item-id>",
		Short: "Remove a saved product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.cart.RemoveFromWishlist(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.app.printWishlist()
			return nil
		},
	}

	move := &cobra.Command{
		Use:   "move <wishlist-item-id>",
		Short: "Move a saved product to the cart in its first available size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.cart.RefreshWishlist(cmd.Context()); err != nil {
				return err
			}
			if err := c.app.cart.MoveToCart(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Moved to cart.")
			c.app.printCart()
			return nil
		},
	}

	cmd.AddCommand(add, remove, move)
	return cmd
}
