package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ch341"
	"github.com/mklimuk/ch341/cmd/ch341/console"
)

var gpioCmd = cli.Command{
	Name: "gpio",
	Subcommands: cli.Commands{
		&gpioReadCmd,
		&gpioWriteCmd,
		&gpioDirCmd,
		&gpioResetCmd,
	},
}

var gpioReadCmd = cli.Command{
	Name:  "read",
	Usage: "sample all pin levels",
	Action: func(c *cli.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openDevice(c, ctx)
		if err != nil {
			return console.Exit(1, "could not open bridge: %v", err)
		}
		defer dev.Close(ctx)
		levels, err := dev.GPIOReadAll(ctx)
		if err != nil {
			return console.Exit(1, "could not read pins: %v", err)
		}
		for pin := ch341.D0; pin <= ch341.D5; pin++ {
			fmt.Printf("D%d: %d\n", pin, levels>>pin&1)
		}
		return nil
	},
}

var gpioWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "drive an output pin",
	ArgsUsage: "<pin> <0|1>",
	Action: func(c *cli.Context) error {
		pin, level, err := pinArgs(c)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openDevice(c, ctx)
		if err != nil {
			return console.Exit(1, "could not open bridge: %v", err)
		}
		defer dev.Close(ctx)
		if err = dev.SetDirection(ctx, pin, true); err != nil {
			return console.Exit(1, "could not configure pin: %v", err)
		}
		if err = dev.GPIOWrite(ctx, pin, level); err != nil {
			return console.Exit(1, "could not drive pin: %v", err)
		}
		console.Infof("D%d driven %s", pin, map[bool]string{true: "high", false: "low"}[level])
		return nil
	},
}

var gpioDirCmd = cli.Command{
	Name:      "dir",
	Usage:     "set a pin direction",
	ArgsUsage: "<pin> <in|out>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		pin, err := parsePin(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		var output bool
		switch c.Args().Get(1) {
		case "in":
		case "out":
			output = true
		default:
			return console.Exit(1, "direction must be in or out, got %q", c.Args().Get(1))
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openDevice(c, ctx)
		if err != nil {
			return console.Exit(1, "could not open bridge: %v", err)
		}
		defer dev.Close(ctx)
		if err = dev.SetDirection(ctx, pin, output); err != nil {
			return console.Exit(1, "could not set direction: %v", err)
		}
		return nil
	},
}

var gpioResetCmd = cli.Command{
	Name:  "reset",
	Usage: "return all pins to input, outputs low",
	Action: func(c *cli.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		dev, err := openDevice(c, ctx)
		if err != nil {
			return console.Exit(1, "could not open bridge: %v", err)
		}
		defer dev.Close(ctx)
		if err = dev.GPIOReset(ctx); err != nil {
			return console.Exit(1, "could not reset pins: %v", err)
		}
		return nil
	},
}

func parsePin(arg string) (ch341.Pin, error) {
	if len(arg) == 2 && (arg[0] == 'D' || arg[0] == 'd') {
		arg = arg[1:]
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n > int(ch341.D5) {
		return 0, fmt.Errorf("pin must be D0..D5, got %q", arg)
	}
	return ch341.Pin(n), nil
}

func pinArgs(c *cli.Context) (ch341.Pin, bool, error) {
	if c.NArg() != 2 {
		return 0, false, console.Exit(1, "expected 2 arguments, got %d", c.NArg())
	}
	pin, err := parsePin(c.Args().Get(0))
	if err != nil {
		return 0, false, console.Exit(1, "%v", err)
	}
	switch c.Args().Get(1) {
	case "0":
		return pin, false, nil
	case "1":
		return pin, true, nil
	}
	return 0, false, console.Exit(1, "level must be 0 or 1, got %q", c.Args().Get(1))
}
