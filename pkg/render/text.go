package render

import (
	"fmt"
	"io"
	"strings"
)

// WriteOrder prints a build order as a numbered list.
func WriteOrder(w io.Writer, order []string) error {
	width := len(fmt.Sprint(len(order)))
	for i, id := range order {
		if _, err := fmt.Fprintf(w, "%*d  %s\n", width, i+1, id); err != nil {
			return err
		}
	}
	return nil
}

// WriteLevels prints one line per level; the packages of a level can be
// built in parallel once all earlier levels are done.
func WriteLevels(w io.Writer, levels [][]string) error {
	for i, ids := range levels {
		if _, err := fmt.Fprintf(w, "level %d: %s\n", i, strings.Join(ids, " ")); err != nil {
			return err
		}
	}
	return nil
}
