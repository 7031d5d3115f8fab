package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vita-chat/internal/model"
)

func (a *app) entriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Medical entries the assistant cites",
		Long: `List and read medical entries. Creating, scraping, editing, publishing and
deleting entries needs an admin account. Only published entries are cited in
chat replies.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List medical entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.svc.MedicalEntry.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(a.out, "ID", "TITLE", "PUBLISHED", "UPDATED")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Title, yesNo(e.Published), formatTime(e.UpdatedAt))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a medical entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.svc.MedicalEntry.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.printEntry(e)
			return nil
		},
	})

	var in model.MedicalEntryInput
	var publish bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a medical entry (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}
			if publish {
				in.Published = &publish
			}
			e, err := a.svc.MedicalEntry.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Created %q (%s)\n", okStyle("✓"), e.Title, e.ID)
			return nil
		},
	}
	create.Flags().StringVar(&in.Title, "title", "", "entry title (required)")
	create.Flags().StringVar(&in.Content, "content", "", "entry body (required)")
	create.Flags().StringVar(&in.SourceURL, "source-url", "", "where the content comes from")
	create.Flags().BoolVar(&publish, "publish", false, "publish immediately")
	cmd.AddCommand(create)

	var save bool
	scrape := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Draft an entry from a web page (admin)",
		Long: `Ask the backend to scrape a page into a draft entry and print it. With
--save the draft is stored as an unpublished entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}
			res, err := a.svc.MedicalEntry.Scrape(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if res.Message != "" {
				fmt.Fprintln(a.out, dimStyle(res.Message))
			}
			fmt.Fprintf(a.out, "%s\n%s\n\n%s\n", titleStyle(res.Title), dimStyle(res.SourceURL), res.Content)
			if !save {
				return nil
			}
			e, err := a.svc.MedicalEntry.Create(cmd.Context(), model.MedicalEntryInput{
				Title:     res.Title,
				Content:   res.Content,
				SourceURL: res.SourceURL,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Saved draft %s\n", okStyle("✓"), e.ID)
			return nil
		},
	}
	scrape.Flags().BoolVar(&save, "save", false, "store the draft as an entry")
	cmd.AddCommand(scrape)

	var patch model.MedicalEntryInput
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a medical entry (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}
			if patch == (model.MedicalEntryInput{}) {
				return fmt.Errorf("nothing to update, pass --title, --content or --source-url")
			}
			e, err := a.svc.MedicalEntry.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Updated %q\n", okStyle("✓"), e.Title)
			return nil
		},
	}
	update.Flags().StringVar(&patch.Title, "title", "", "new title")
	update.Flags().StringVar(&patch.Content, "content", "", "new body")
	update.Flags().StringVar(&patch.SourceURL, "source-url", "", "new source url")
	cmd.AddCommand(update)

	cmd.AddCommand(a.publishCmd("publish", true), a.publishCmd("unpublish", false))

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a medical entry (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}
			if err := a.svc.MedicalEntry.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s Deleted %s\n", okStyle("✓"), args[0])
			return nil
		},
	})

	return cmd
}

func (a *app) publishCmd(use string, published bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark an entry as %sed (admin)", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}
			e, err := a.svc.MedicalEntry.SetPublished(cmd.Context(), args[0], published)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %q published: %s\n", okStyle("✓"), e.Title, yesNo(e.Published))
			return nil
		},
	}
}

func (a *app) printEntry(e *model.MedicalEntry) {
	fmt.Fprintln(a.out, titleStyle(e.Title))
	status := "draft"
	if e.Published {
		status = "published"
	}
	fmt.Fprintln(a.out, dimStyle(fmt.Sprintf("%s · updated %s", status, formatTime(e.UpdatedAt))))
	if e.SourceURL != "" {
		fmt.Fprintln(a.out, dimStyle(e.SourceURL))
	}
	fmt.Fprintf(a.out, "\n%s\n", e.Content)
}
