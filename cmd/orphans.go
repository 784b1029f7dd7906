package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rualca/librarian-agent/internal/vault"
	"github.com/spf13/cobra"
)

var flagOrphansLink bool

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List Cards not linked to any MOC and suggest where they belong",
	Long: `List Cards whose text links to none of the maps of content in Atlas/
("MOC - <name>.md"), with MOCs suggested from keywords in each Card.

With --link, the suggested MOCs are written to the Card's "- Related to:"
line under "## Context".`,
	Args: cobra.NoArgs,
	RunE: runOrphans,
}

func init() {
	orphansCmd.Flags().BoolVar(&flagOrphansLink, "link", false, "Link each orphan to its suggested MOCs")
	rootCmd.AddCommand(orphansCmd)
}

func runOrphans(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	orphans, err := a.vault.OrphanCards()
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		printOK("", "Every Card is linked to a MOC.")
		return nil
	}

	printSection(fmt.Sprintf("%d orphan Card(s)", len(orphans)))
	linked := 0
	for _, o := range orphans {
		printBullet(o.Title)
		if o.Snippet != "" {
			fmt.Printf("    %s\n", o.Snippet)
		}
		content, err := a.vault.Read(vault.KindCards, o.Title)
		if err != nil {
			printErr(o.Title, err.Error())
			continue
		}
		mocs, err := a.vault.SuggestMOCs(o.Title, content)
		if err != nil {
			return err
		}
		if len(mocs) == 0 {
			printMiss("", "no MOC suggestion")
			continue
		}
		if !flagOrphansLink {
			printInfo("", "suggested: "+strings.Join(mocs, ", "))
			continue
		}
		changed, err := a.vault.LinkToMOC(o.Title, mocs, time.Now())
		switch {
		case err != nil:
			printErr(o.Title, err.Error())
		case changed:
			linked++
			printOK("", "linked to "+strings.Join(mocs, ", "))
		default:
			printSkip("", "already linked to "+strings.Join(mocs, ", "))
		}
	}
	if flagOrphansLink {
		fmt.Printf("\n%d of %d orphan Card(s) linked.\n", linked, len(orphans))
	}
	return nil
}
