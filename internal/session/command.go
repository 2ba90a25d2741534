package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cptaffe/acme-crafts/craft"
)

// Window commands.
const (
	cmdColor   = "Color"
	cmdPaint   = "Paint"
	cmdPad     = "Pad"
	cmdRender  = "Render"
	cmdPalette = "Palette"
)

var errUsage = errors.New("usage")

// command is one parsed window command.
type command struct {
	Name  string
	Color string // Color, and Paint's optional colour
	Col   int
	Row   int
	Pad   craft.Padding
}

// parseCommand parses an executed command line.  ok is false for commands
// that belong to acme.
func parseCommand(line string) (cmd command, ok bool, err error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return command{}, false, nil
	}
	cmd.Name = f[0]
	args := f[1:]
	switch cmd.Name {
	case cmdColor:
		if len(args) != 1 {
			return cmd, true, fmt.Errorf("%w: Color name", errUsage)
		}
		cmd.Color = args[0]

	case cmdPaint:
		if len(args) != 2 && len(args) != 3 {
			return cmd, true, fmt.Errorf("%w: Paint col row [name]", errUsage)
		}
		if cmd.Col, err = strconv.Atoi(args[0]); err != nil {
			return cmd, true, fmt.Errorf("%w: Paint col row [name]: bad column %q", errUsage, args[0])
		}
		if cmd.Row, err = strconv.Atoi(args[1]); err != nil {
			return cmd, true, fmt.Errorf("%w: Paint col row [name]: bad row %q", errUsage, args[1])
		}
		if len(args) == 3 {
			cmd.Color = args[2]
		}

	case cmdPad:
		if len(args) != 1 && len(args) != 2 {
			return cmd, true, fmt.Errorf("%w: Pad top|left|right|bottom|all [n]", errUsage)
		}
		n := 1
		if len(args) == 2 {
			if n, err = strconv.Atoi(args[1]); err != nil || n < 0 {
				return cmd, true, fmt.Errorf("%w: Pad: bad count %q", errUsage, args[1])
			}
		}
		switch args[0] {
		case "top":
			cmd.Pad.Top = n
		case "left":
			cmd.Pad.Left = n
		case "right":
			cmd.Pad.Right = n
		case "bottom":
			cmd.Pad.Bottom = n
		case "all":
			cmd.Pad = craft.Padding{Top: n, Left: n, Right: n, Bottom: n}
		default:
			return cmd, true, fmt.Errorf("%w: Pad: unknown side %q", errUsage, args[0])
		}

	case cmdRender, cmdPalette:
		if len(args) != 0 {
			return cmd, true, fmt.Errorf("%w: %s takes no arguments", errUsage, cmd.Name)
		}

	default:
		return command{}, false, nil
	}
	return cmd, true, nil
}
