package console

import (
	"strings"

	"github.com/chzyer/readline"
)

// YesOrNo asks for confirmation on the terminal. Anything but an explicit
// yes counts as no; memory writes should never proceed on a stray enter.
func YesOrNo(question string) (bool, error) {
	rl, err := readline.New(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	defer func() { _ = rl.Close() }()
	answer, err := rl.Readline()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
