package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/LiangYue1981816/embree/device"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/urfave/cli"
)

// Info displays the capabilities of a device created with the supplied
// configuration string.
func Info(ctx *cli.Context) error {
	setupLogging(ctx)

	dev, err := device.New(ctx.String("config"))
	if err != nil {
		return err
	}
	defer dev.Close()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Parameter", "Value"})

	for _, p := range []struct {
		name  string
		param device.Param
	}{
		{"Version", device.ParamVersion},
		{"Native packet width", device.ParamNativeWidth},
		{"Build threads", device.ParamThreads},
		{"Leaf width", device.ParamLeafWidth},
		{"Max buffer stride", device.ParamMaxStride},
		{"Memory used", device.ParamMemoryUsed},
	} {
		value, err := dev.Parameter(p.param)
		if err != nil {
			return err
		}
		table.Append([]string{p.name, fmt.Sprintf("%d", value)})
	}

	isa := dev.ISA()
	widths := lo.Map(isa.PacketWidths(), func(w int, _ int) string { return fmt.Sprintf("%d", w) })
	table.Append([]string{"ISA", isa.String()})
	table.Append([]string{"Packet widths", strings.Join(widths, ", ")})
	table.SetFooter([]string{"Device", dev.ID().String()})

	table.Render()
	logger.Noticef("device capabilities\n%s", buf.String())
	return nil
}
