package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ch341"
	"github.com/mklimuk/ch341/cmd/ch341/console"
)

var eepromCmd = cli.Command{
	Name: "eeprom",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "type", Usage: "eeprom family member (e.g. 24C256)"},
	},
	Subcommands: cli.Commands{
		&eepromReadCmd,
		&eepromWriteCmd,
	},
}

func openEEPROM(c *cli.Context, ctx context.Context) (*ch341.Device, error) {
	dev, err := openDevice(c, ctx)
	if err != nil {
		return nil, console.Exit(1, "could not open bridge: %v", err)
	}
	if name := c.String("type"); name != "" {
		typ, err := ch341.ParseEEPROMType(name)
		if err != nil {
			_ = dev.Close(ctx)
			return nil, console.Exit(1, "%v", err)
		}
		if err = dev.SetEEPROMType(typ); err != nil {
			_ = dev.Close(ctx)
			return nil, console.Exit(1, "%v", err)
		}
	}
	return dev, nil
}

var eepromReadCmd = cli.Command{
	Name:      "read",
	Usage:     "read a memory range",
	ArgsUsage: "<address>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "length", Usage: "number of bytes to read", Value: 16},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		addr, err := strconv.ParseInt(c.Args().Get(0), 0, 32)
		if err != nil {
			return console.Exit(1, "could not parse address: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openEEPROM(c, ctx)
		if err != nil {
			return err
		}
		defer dev.Close(ctx)
		buf := make([]byte, c.Int("length"))
		if err = dev.EEPROMRead(ctx, int(addr), buf); err != nil {
			return console.Exit(1, "read failed: %v", err)
		}
		console.Print(hex.Dump(buf))
		return nil
	},
}

var eepromWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "write hex bytes to a memory range",
	ArgsUsage: "<address> <data>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Usage: "skip the confirmation prompt"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		addr, err := strconv.ParseInt(c.Args().Get(0), 0, 32)
		if err != nil {
			return console.Exit(1, "could not parse address: %v", err)
		}
		data, err := hex.DecodeString(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		if !c.Bool("yes") {
			confirmed, err := console.YesOrNo(console.Bold(
				fmt.Sprintf("overwrite %d byte(s) at %#x?", len(data), addr)))
			if err != nil {
				return console.Exit(1, "%v", err)
			}
			if !confirmed {
				console.Info("aborted")
				return nil
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openEEPROM(c, ctx)
		if err != nil {
			return err
		}
		defer dev.Close(ctx)
		if err = dev.EEPROMWrite(ctx, int(addr), data); err != nil {
			return console.Exit(1, "write failed: %v", err)
		}
		console.Infof("wrote %d byte(s) at %#x", len(data), addr)
		return nil
	},
}
