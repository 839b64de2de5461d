package main

import (
	"context"
	"encoding/hex"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ch341"
	"github.com/mklimuk/ch341/cmd/ch341/console"
)

var spiCmd = cli.Command{
	Name: "spi",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "cs", Usage: "chip select line (0-2, -1 for none)", Value: 0},
		&cli.BoolFlag{Name: "lsb", Usage: "shift least significant bit first"},
	},
	Subcommands: cli.Commands{
		&spiXferCmd,
		&spiReadCmd,
	},
}

func chipSelect(c *cli.Context) (ch341.ChipSelect, error) {
	switch c.Int("cs") {
	case -1:
		return ch341.CSNone, nil
	case 0:
		return ch341.CS0, nil
	case 1:
		return ch341.CS1, nil
	case 2:
		return ch341.CS2, nil
	}
	return ch341.CSNone, console.Exit(1, "chip select out of range: %d", c.Int("cs"))
}

func openSPI(c *cli.Context, ctx context.Context, cs ch341.ChipSelect) (*ch341.Device, error) {
	dev, err := openDevice(c, ctx)
	if err != nil {
		return nil, console.Exit(1, "could not open bridge: %v", err)
	}
	if c.Bool("lsb") {
		if err = dev.SetBitOrder(ctx, ch341.LSBFirst); err != nil {
			_ = dev.Close(ctx)
			return nil, console.Exit(1, "could not set bit order: %v", err)
		}
	}
	if err = dev.SPIInit(ctx, cs); err != nil {
		_ = dev.Close(ctx)
		return nil, console.Exit(1, "could not initialize spi lines: %v", err)
	}
	return dev, nil
}

var spiXferCmd = cli.Command{
	Name:      "xfer",
	Usage:     "exchange hex bytes over the bus",
	ArgsUsage: "<data>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		data, err := hex.DecodeString(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		cs, err := chipSelect(c)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openSPI(c, ctx, cs)
		if err != nil {
			return err
		}
		defer dev.Close(ctx)
		if err = dev.Exchange(ctx, data, nil, cs); err != nil {
			return console.Exit(1, "transfer failed: %v", err)
		}
		console.Print(hex.Dump(data))
		return nil
	},
}

var spiReadCmd = cli.Command{
	Name:      "read",
	Usage:     "clock in bytes while sending zero filler",
	ArgsUsage: "<length>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		length, err := strconv.Atoi(c.Args().Get(0))
		if err != nil || length <= 0 {
			return console.Exit(1, "invalid length %q", c.Args().Get(0))
		}
		cs, err := chipSelect(c)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openSPI(c, ctx, cs)
		if err != nil {
			return err
		}
		defer dev.Close(ctx)
		data, _, err := dev.SPIRead(ctx, length, 1, cs)
		if err != nil {
			return console.Exit(1, "read failed: %v", err)
		}
		console.Print(hex.Dump(data))
		return nil
	},
}
