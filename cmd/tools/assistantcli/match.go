package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <query>",
		Short: "Run the local knowledge matcher against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMatch,
	}
	cmd.Flags().Bool("explain", false, "Print the score of every entry")
	return cmd
}

func runMatch(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.logger.Sync()

	query := strings.Join(args, " ")
	entry, ok := rt.matcher.Match(query)
	if ok {
		categoryColor.Printf("%s  [%s]\n", entry.Question, entry.ID)
		fmt.Println(entry.Answer)
	} else {
		printWarning("no entry scored above the threshold")
	}

	explain, _ := cmd.Flags().GetBool("explain")
	if !explain {
		return nil
	}

	scores := rt.matcher.Explain(query)
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	fmt.Println()
	for _, s := range scores {
		line := fmt.Sprintf("%4d  %-20s %s", s.Score, s.Entry.ID, s.Entry.Question)
		switch {
		case ok && s.Entry.ID == entry.ID:
			matchColor.Println(line)
		case s.Score == 0:
			dimColor.Println(line)
		default:
			fmt.Println(line)
		}
	}
	return nil
}
