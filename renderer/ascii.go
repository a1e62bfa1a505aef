package renderer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pthm-cable/gridsoup/world"
)

// WriteASCII dumps the grid as text: a header line with the world age and
// census, then one row per grid line using C, E, F and '_' for empty cells.
func WriteASCII(out io.Writer, w *world.World) error {
	bw := bufio.NewWriter(out)
	c := w.Census()
	fmt.Fprintf(bw, "age=%d creatures=%d eggs=%d food=%d\n", w.Age(), c.Creatures, c.Eggs, c.Food)
	if _, err := bw.WriteString(w.String()); err != nil {
		return err
	}
	return bw.Flush()
}
