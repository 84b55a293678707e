package cli

import (
	"flag"
	"fmt"
	"text/tabwriter"
	"time"
)

func (a *app) newHistoryCommand() *Command {
	cmd := &Command{
		Name:        "history",
		Description: "List recent install and update passes",
		Flags:       flag.NewFlagSet("history", flag.ContinueOnError),
		Run:         a.runHistory,
	}
	bindHistoryFlags(cmd.Flags)
	return cmd
}

func bindHistoryFlags(fs *flag.FlagSet) *int {
	return fs.Int("limit", 20, "Number of passes to show")
}

func (a *app) runHistory(args []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := bindHistoryFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	store, err := s.history()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("history is not configured (set PLUGINSYNC_HISTORY_DSN)")
	}
	defer store.Close() //nolint:errcheck

	passes, err := store.List(ctx, *limit)
	if err != nil {
		return err
	}
	if len(passes) == 0 {
		a.printf("No passes recorded\n")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tOPERATION\tSTATUS\tINSTALLED\tFAILED\tEXCLUDED\tREMOVED\tRESTARTED\tPASS")
	for _, p := range passes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%t\t%s\n",
			p.StartedAt.Local().Format(time.RFC3339), p.Operation, p.Status,
			p.Installed, p.Failed, p.Excluded, p.Removed, p.Restarted, p.ID)
	}
	return w.Flush()
}
