package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

func bindAddressFlags(fs *pflag.FlagSet, a *domain.Address, addrType *string) {
	fs.StringVar(&a.FullName, "name", "", "recipient's full name")
	fs.StringVar(&a.Phone, "phone", "", "10-digit phone")
	fs.StringVar(&a.Line1, "line1", "", "address line 1")
	fs.StringVar(&a.Line2, "line2", "", "address line 2")
	fs.StringVar(&a.Landmark, "landmark", "", "landmark")
	fs.StringVar(&a.City, "city", "", "city")
	fs.StringVar(&a.State, "state", "", "state")
	fs.StringVar(&a.Pincode, "pincode", "", "6-digit pincode")
	fs.StringVar(addrType, "type", string(domain.AddressHome), "HOME, WORK or OTHER")
	fs.BoolVar(&a.IsDefault, "default", false, "make this the default address")
}

func newAddressCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Manage delivery addresses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addresses, err := c.app.addresses.List(cmd.Context())
			if err != nil {
				return err
			}
			c.app.printAddresses(addresses)
			return nil
		},
	}

	var newAddr domain.Address
	var newType string
	add := &cobra.Command{
		Use:   "add",
		Short: "Save a new address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			newAddr.Type = domain.AddressType(newType)
			saved, err := c.app.addresses.Create(cmd.Context(), newAddr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved address %s: %s\n", saved.ID, saved.OneLine())
			return nil
		},
	}
	bindAddressFlags(add.Flags(), &newAddr, &newType)

	var edit domain.Address
	var editType string
	update := &cobra.Command{
		Use:   "update <address-id>",
		Short: "Replace a saved address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edit.ID = args[0]
			edit.Type = domain.AddressType(editType)
			saved, err := c.app.addresses.Update(cmd.Context(), edit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated address %s: %s\n", saved.ID, saved.OneLine())
			return nil
		},
	}
	bindAddressFlags(update.Flags(), &edit, &editType)

	remove := &cobra.Command{
		Use:   "delete <address-id>",
		Short: "Delete a saved address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.addresses.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Address deleted.")
			return nil
		},
	}

	setDefault := &cobra.Command{
		Use:   "default <address-id>",
		Short: "Make an address the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.addresses.SetDefault(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Default address updated.")
			return nil
		},
	}

	cmd.AddCommand(add, update, remove, setDefault)
	return cmd
}
