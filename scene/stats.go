package scene

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/LiangYue1981816/embree/accel"
	"github.com/olekukonko/tablewriter"
)

// AccelStats returns the build statistics of the top level accelerators of
// the committed scene.
func (s *Scene) AccelStats() ([]accel.Stats, error) {
	idx, err := s.ready()
	if err != nil {
		return nil, err
	}
	return idx.stats(), nil
}

// Stats builds a tabular representation of the committed accelerators.
func (s *Scene) Stats() (string, error) {
	list, err := s.AccelStats()
	if err != nil {
		return "", err
	}

	var (
		buf   bytes.Buffer
		total accel.Stats
	)
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Leaf kind", "Primitives", "Nodes", "Leaves", "Blocks", "Depth", "Leaf data"})
	for _, st := range list {
		table.Append([]string{
			st.Kind.String(),
			fmt.Sprintf("%d", st.Prims),
			fmt.Sprintf("%d", st.Nodes),
			fmt.Sprintf("%d", st.Leaves),
			fmt.Sprintf("%d", st.Blocks),
			fmt.Sprintf("%d", st.MaxDepth),
			fmtSize(st.Bytes),
		})
		total.Prims += st.Prims
		total.Nodes += st.Nodes
		total.Leaves += st.Leaves
		total.Blocks += st.Blocks
		total.Bytes += st.Bytes
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", total.Prims), fmt.Sprintf("%d", total.Nodes), fmt.Sprintf("%d", total.Leaves), fmt.Sprintf("%d", total.Blocks), " ", strings.TrimLeft(fmtSize(total.Bytes), " ")})

	table.Render()
	return buf.String(), nil
}

// Format a byte count with the appropriate byte/kb/mb unit.
func fmtSize(size int) string {
	totalBytes := float32(size)
	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", size)
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%3.1f mb", totalBytes/1e6)
}
