package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
)

func (c *Cli) runList(ctx context.Context) error {
	if _, err := c.requireSession(); err != nil {
		return err
	}

	resp, err := c.apiClient.ListFlows(ctx)
	if err != nil {
		return err
	}

	if len(resp.Flows) == 0 {
		c.io.Println("No flows yet. Add one with 'flowsync add <title>'.")
		return nil
	}

	w := tabwriter.NewWriter(c.io, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tUPDATED")
	for _, f := range resp.Flows {
		title := f.Title
		if f.Archived {
			title += " (archived)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			f.ID, title, f.TrackingType, f.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
