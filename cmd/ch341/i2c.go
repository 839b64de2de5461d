package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ch341/cmd/ch341/console"
)

var i2cCmd = cli.Command{
	Name: "i2c",
	Subcommands: cli.Commands{
		&i2cScanCmd,
		&i2cReadCmd,
		&i2cWriteCmd,
	},
}

var i2cScanCmd = cli.Command{
	Name:  "scan",
	Usage: "probe all 7-bit addresses for responding devices",
	Action: func(c *cli.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openDevice(c, ctx)
		if err != nil {
			return console.Exit(1, "could not open bridge: %v", err)
		}
		defer dev.Close(ctx)
		addrs, err := dev.Scan(ctx)
		if err != nil {
			return console.Exit(1, "scan failed: %v", err)
		}
		printScanGrid(addrs)
		return nil
	},
}

// printScanGrid renders the classic 8x16 address grid, a dash for silent
// addresses.
func printScanGrid(addrs []byte) {
	found := make(map[byte]bool, len(addrs))
	for _, a := range addrs {
		found[a] = true
	}
	fmt.Print("   ")
	for col := 0; col < 16; col++ {
		fmt.Printf(" %2x", col)
	}
	fmt.Println()
	for row := 0; row < 8; row++ {
		fmt.Printf("%02x:", row*16)
		for col := 0; col < 16; col++ {
			addr := byte(row*16 + col)
			switch {
			case found[addr]:
				fmt.Printf(" %s", console.Green(fmt.Sprintf("%02x", addr)))
			case addr > 0x7E:
				fmt.Print("   ")
			default:
				fmt.Print(" --")
			}
		}
		fmt.Println()
	}
	fmt.Printf("\n%d device(s) found\n", len(addrs))
}

// hexByte decodes an argument that must be exactly one hex encoded byte.
func hexByte(arg, what string) (byte, error) {
	b, err := hex.DecodeString(arg)
	if err != nil || len(b) != 1 {
		return 0, fmt.Errorf("%s must be one hex byte, got %q", what, arg)
	}
	return b[0], nil
}

var i2cReadCmd = cli.Command{
	Name:      "read",
	Usage:     "read register bytes from a device",
	ArgsUsage: "<addr> <reg>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "length", Usage: "number of bytes to read", Value: 1},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		addr, err := hexByte(c.Args().Get(0), "address")
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		reg, err := hexByte(c.Args().Get(1), "register")
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openDevice(c, ctx)
		if err != nil {
			return console.Exit(1, "could not open bridge: %v", err)
		}
		defer dev.Close(ctx)
		buf := make([]byte, c.Int("length"))
		if err = dev.ReadReg(ctx, addr, reg, buf); err != nil {
			return console.Exit(1, "read failed: %v", err)
		}
		fmt.Print(hex.Dump(buf))
		return nil
	},
}

var i2cWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "write register bytes to a device",
	ArgsUsage: "<addr> <reg> <data>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return console.Exit(1, "expected 3 arguments, got %d", c.NArg())
		}
		addr, err := hexByte(c.Args().Get(0), "address")
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		reg, err := hexByte(c.Args().Get(1), "register")
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		data, err := hex.DecodeString(c.Args().Get(2))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openDevice(c, ctx)
		if err != nil {
			return console.Exit(1, "could not open bridge: %v", err)
		}
		defer dev.Close(ctx)
		if err = dev.WriteReg(ctx, addr, reg, data); err != nil {
			return console.Exit(1, "write failed: %v", err)
		}
		console.Infof("wrote %d byte(s) to %#02x/%#02x", len(data), addr, reg)
		return nil
	},
}
