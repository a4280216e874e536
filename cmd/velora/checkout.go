package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hemanshudhaduk/Velora/internal/address"
	"github.com/Hemanshudhaduk/Velora/internal/checkout"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

func newCheckoutCommand(c *cli) *cobra.Command {
	var (
		shippingID string
		billingID  string
		method     string
		notes      string
		quoteOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			pm, ok := domain.ParsePaymentMethod(method)
			if !ok {
				return domain.NewValidationError(map[string]string{"method": "choose online or cod"})
			}

			flow, err := c.app.newCheckout()
			if err != nil {
				return err
			}
			if err := flow.Begin(ctx); err != nil {
				return err
			}

			if shippingID == "" {
				addresses, err := c.app.addresses.List(ctx)
				if err != nil {
					return err
				}
				def, ok := address.DefaultSelection(addresses)
				if !ok {
					return domain.NewValidationError(map[string]string{"address": "add a delivery address first"})
				}
				shippingID = def.ID
				fmt.Fprintf(out, "Delivering to %s, %s\n", def.FullName, def.OneLine())
			}
			if err := flow.SelectAddress(shippingID, billingID); err != nil {
				return err
			}
			if err := flow.SetPaymentMethod(pm); err != nil {
				return err
			}
			if err := flow.SetNotes(notes); err != nil {
				return err
			}

			c.app.printCart()
			fmt.Fprintln(out)
			c.app.printQuote(flow.Quote())
			if quoteOnly {
				return nil
			}

			if pm == domain.PaymentOnline {
				if err := c.app.widget.Start(); err != nil {
					return fmt.Errorf("start payment callback listener: %w", err)
				}
			}

			outcome, err := flow.PlaceOrder(ctx)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrPaymentVerification):
				if order, ok := flow.Order(); ok {
					fmt.Fprintf(out, "Order %s was created but payment did not go through.\n", order.OrderNumber)
				}
				return err
			default:
				return err
			}

			switch outcome.State {
			case checkout.StateSuccess:
				fmt.Fprintf(out, "\nOrder %s placed. Total %s.\n", outcome.Order.OrderNumber, c.app.money.Format(outcome.Quote.Total))
				if outcome.Order.Method == domain.PaymentCOD {
					fmt.Fprintln(out, "Pay in cash when the order arrives.")
				}
			case checkout.StateCancelled:
				fmt.Fprintln(out, "\nPayment window closed. Your cart is unchanged; run checkout again to retry.")
			default:
				fmt.Fprintf(out, "\nCheckout stopped in state %s.\n", outcome.State)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&shippingID, "address", "", "shipping address id (defaults to your default address)")
	f.StringVar(&billingID, "billing", "", "billing address id (defaults to the shipping address)")
	f.StringVar(&method, "method", string(domain.PaymentOnline), "payment method: online or cod")
	f.StringVar(&notes, "notes", "", "delivery notes")
	f.BoolVar(&quoteOnly, "quote-only", false, "show the price breakdown without ordering")
	return cmd
}
