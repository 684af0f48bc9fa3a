package main

import (
	"os"
	"strings"

	"chat-relay/protocol"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// console renders the session's display queue on stdout. It is a pure
// presentation shim: all protocol logic lives in the client session.
type console struct {
	colours bool
}

// print renders one queued display line. Names replies become a table,
// private and system lines get their own colours.
func (c *console) print(line string, names []string) {
	switch {
	case strings.Contains(line, protocol.NamesHeader):
		c.printNames(names)
	case strings.Contains(line, "(PRIVATE)"):
		c.println(line, color.FgMagenta)
	case strings.HasPrefix(line, protocol.SystemName+":"):
		c.println(line, color.FgYellow)
	default:
		c.println(line, 0)
	}
}

func (c *console) println(line string, fg color.Color) {
	if c.colours && fg != 0 {
		line = fg.Render(line)
	}
	os.Stdout.WriteString(line + "\n")
}

func (c *console) printNames(names []string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{protocol.NamesHeader})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	for _, name := range names {
		table.Append([]string{name})
	}
	table.Render()
}
