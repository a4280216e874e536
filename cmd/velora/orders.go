package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hemanshudhaduk/Velora/internal/orders"
)

const dateLayout = "02 Jan 2006 15:04"

func newOrdersCommand(c *cli) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Order history and cancellation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := c.app.orders.List(cmd.Context(), page)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(result.Orders) == 0 {
				fmt.Fprintln(out, "No orders yet.")
				return nil
			}
			tw := newTable(out, "ID", "NUMBER", "PLACED", "STATUS", "PAYMENT", "TOTAL")
			for _, o := range result.Orders {
				row(tw, o.ID, o.OrderNumber, o.CreatedAt.Local().Format(dateLayout), o.Status, o.PaymentMethod, c.app.money.Format(o.TotalAmount))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nPage %d of %d\n", result.Pagination.Page, result.Pagination.TotalPages)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")

	show := &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.app.orders.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order %s (%s)\nPlaced %s, payment %s/%s\n",
				o.OrderNumber, o.Status, o.CreatedAt.Local().Format(dateLayout), o.PaymentMethod, o.PaymentStatus)
			if o.ShippingAddress != nil {
				fmt.Fprintf(out, "Ship to %s, %s\n", o.ShippingAddress.FullName, o.ShippingAddress.OneLine())
			}
			if o.TrackingNumber != "" {
				fmt.Fprintf(out, "Tracking: %s %s\n", o.Courier, o.TrackingNumber)
			}
			fmt.Fprintln(out)
			tw := newTable(out, "ITEM", "SIZE", "QTY", "PRICE", "TOTAL")
			for _, it := range o.Items {
				row(tw, it.ProductName, it.Size, it.Quantity, c.app.money.Format(it.UnitPrice), c.app.money.Format(it.TotalPrice))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTotal %s\n", c.app.money.Format(o.TotalAmount))
			if left := orders.CancellationTimeRemaining(o, time.Now()); orders.CanCancel(o, time.Now()) && left != "" {
				fmt.Fprintf(out, "You can cancel this order for %s more.\n", left)
			}
			return nil
		},
	}

	var reason string
	cancel := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an order within 24 hours of placing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.app.orders.Cancel(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s.\n", o.OrderNumber, o.Status)
			return nil
		},
	}
	cancel.Flags().StringVar(&reason, "reason", "", "why you are cancelling")

	cmd.AddCommand(show, cancel)
	return cmd
}
