package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ch341/cmd/ch341/console"
	"github.com/mklimuk/ch341/usb"
)

var usbCmd = cli.Command{
	Name: "usb",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
		&usbInfoCmd,
	},
}

var usbLsCmd = cli.Command{
	Name: "ls",
	Action: func(c *cli.Context) error {
		// List all HID devices
		devices := hid.Enumerate(0, 0)

		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")

		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		_ = w.Flush()
		return nil
	},
}

var usbDetectCmd = cli.Command{
	Name: "detect",
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(usb.VendorID, usb.ProductID)

		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "INDEX\tVENDOR\tPRODUCT\tPATH\n")

		for i, dev := range devices {
			_, _ = fmt.Fprintf(w, "%d\t%#x\t%#x\t%s\n", i, dev.VendorID, dev.ProductID, dev.Path)
		}
		_ = w.Flush()
		return nil
	},
}

var usbInfoCmd = cli.Command{
	Name: "info",
	Action: func(c *cli.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openDevice(c, ctx)
		if err != nil {
			return console.Exit(1, "could not open bridge: %v", err)
		}
		defer dev.Close(ctx)
		version, err := dev.ICVersion(ctx)
		if err != nil {
			return console.Exit(1, "could not read chip version: %v", err)
		}
		name, err := dev.Name(ctx)
		if err != nil {
			return console.Exit(1, "could not read device name: %v", err)
		}
		fmt.Printf("chip version: %#x\nname: %s\n", version, name)
		return nil
	},
}
