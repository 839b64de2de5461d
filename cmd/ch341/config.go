package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/ch341"
	"github.com/mklimuk/ch341/usb"
)

const commandTimeout = 5 * time.Second

// profile is an optional yaml file with bridge settings shared between
// invocations, so that repeated eeprom or i2c calls do not need the same
// flags every time.
type profile struct {
	Index     int    `yaml:"index"`
	Exclusive bool   `yaml:"exclusive"`
	I2CSpeed  int    `yaml:"i2c_speed"`
	BitOrder  string `yaml:"bit_order"`
	EEPROM    string `yaml:"eeprom"`
}

func loadProfile(path string) (*profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read profile: %w", err)
	}
	var p profile
	if err = yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("could not parse profile: %w", err)
	}
	return &p, nil
}

func (p *profile) apply(ctx context.Context, dev *ch341.Device) error {
	if p.I2CSpeed != 0 {
		if err := dev.SetI2CSpeed(ctx, speedClass(p.I2CSpeed)); err != nil {
			return fmt.Errorf("could not set bus speed: %w", err)
		}
	}
	switch p.BitOrder {
	case "", "msb":
	case "lsb":
		if err := dev.SetBitOrder(ctx, ch341.LSBFirst); err != nil {
			return fmt.Errorf("could not set bit order: %w", err)
		}
	default:
		return fmt.Errorf("unknown bit order %q", p.BitOrder)
	}
	if p.EEPROM != "" {
		typ, err := ch341.ParseEEPROMType(p.EEPROM)
		if err != nil {
			return err
		}
		if err = dev.SetEEPROMType(typ); err != nil {
			return err
		}
	}
	return nil
}

// speedClass maps a kHz value onto the nearest clock class of the chip.
func speedClass(khz int) int {
	switch {
	case khz <= 20:
		return ch341.I2CSpeed20kHz
	case khz <= 100:
		return ch341.I2CSpeed100kHz
	case khz <= 400:
		return ch341.I2CSpeed400kHz
	default:
		return ch341.I2CSpeed800kHz
	}
}

// openDevice opens the bridge selected by the profile and the global flags;
// flags win over the profile.
func openDevice(c *cli.Context, ctx context.Context) (*ch341.Device, error) {
	p := &profile{}
	if path := c.String("config"); path != "" {
		loaded, err := loadProfile(path)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	if c.IsSet("index") {
		p.Index = c.Int("index")
	}
	if c.IsSet("exclusive") {
		p.Exclusive = c.Bool("exclusive")
	}
	dev := ch341.New(usb.New(), p.Index)
	if err := dev.Open(ctx, p.Exclusive); err != nil {
		return nil, err
	}
	if err := p.apply(ctx, dev); err != nil {
		_ = dev.Close(ctx)
		return nil, err
	}
	return dev, nil
}
