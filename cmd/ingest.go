package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/ingest"
	"github.com/abhisek/igcseprep/internal/ui/theme"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect, validate and process web and PDF content",
}

var ingestScrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape one URL or every source in a sources file",
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcesFile, _ := cmd.Flags().GetString("sources")
		url, _ := cmd.Flags().GetString("url")
		subject, _ := cmd.Flags().GetString("subject")
		if (sourcesFile == "") == (url == "") {
			return errors.New("pass exactly one of --url or --sources")
		}

		var sources []ingest.Source
		if sourcesFile != "" {
			var err error
			if sources, err = ingest.LoadSources(sourcesFile); err != nil {
				return err
			}
		} else {
			sources = []ingest.Source{{URL: url, SourceType: "web", Subject: subject}}
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		fc, err := ingest.NewFirecrawlClient(a.cfg.Ingest)
		if err != nil {
			return err
		}
		arch, err := a.needArchive(cmd.Context())
		if err != nil {
			return err
		}

		st, err := ingest.NewCollector(fc, a.store, arch).ScrapeAll(cmd.Context(), sources)
		fmt.Println(theme.Section("Scrape finished",
			theme.KV("Sources", st.Total),
			theme.KV("Stored", st.Success),
			theme.KV("Duplicates", st.Duplicates),
			theme.KV("Filtered", st.Skipped),
			theme.KV("Failed", st.Failed),
		))
		return err
	},
}

var ingestPDFCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Extract text from past-paper PDFs into raw content",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		dir, _ := cmd.Flags().GetString("dir")
		if (file == "") == (dir == "") {
			return errors.New("pass exactly one of --file or --dir")
		}
		var opts ingest.PDFOptions
		opts.Subject, _ = cmd.Flags().GetString("subject")
		opts.SyllabusCode, _ = cmd.Flags().GetString("syllabus-code")
		opts.SourceType, _ = cmd.Flags().GetString("source-type")
		opts.Recursive, _ = cmd.Flags().GetBool("recursive")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		arch, err := a.needArchive(cmd.Context())
		if err != nil {
			return err
		}
		c := ingest.NewPDFCollector(nil, a.store, arch)

		if file != "" {
			rc, err := c.CollectFile(cmd.Context(), file, opts)
			if errors.Is(err, ingest.ErrDuplicate) {
				fmt.Println(theme.Hint.Render("Already collected: " + file))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(theme.Section("PDF collected",
				theme.KV("ID", rc.ID),
				theme.KV("Subject", rc.Subject),
				theme.KV("Source type", rc.SourceType),
				theme.KV("Characters", rc.ContentSize),
			))
			return nil
		}

		st, err := c.CollectDir(cmd.Context(), dir, opts)
		fmt.Println(theme.Section("PDF collection finished",
			theme.KV("Files", st.Total),
			theme.KV("Stored", st.Success),
			theme.KV("Duplicates", st.Duplicates),
			theme.KV("Failed", st.Failed),
		))
		return err
	},
}

var ingestValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Screen pending raw content",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		v := ingest.NewValidator(ingest.ValidatorConfigFrom(a.cfg.Ingest), a.store)
		st, err := v.ValidatePending(cmd.Context(), limit)
		if err != nil {
			return err
		}
		fmt.Println(theme.Section("Validation finished",
			theme.KV("Checked", st.Checked),
			theme.KV("Validated", st.Validated),
			theme.KV("Rejected", st.Rejected),
		))
		return nil
	},
}

var ingestProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Turn validated content into topics, flashcards and questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		gen, err := a.needGenerator(cmd.Context())
		if err != nil {
			return err
		}

		st, err := ingest.NewProcessor(gen, a.store).ProcessValidated(cmd.Context(), limit)
		if err != nil {
			return err
		}
		fmt.Println(theme.Section("Processing finished",
			theme.KV("Processed", st.Processed),
			theme.KV("Failed", st.Failed),
			theme.KV("Topics created", st.Topics),
			theme.KV("Flashcards", st.Flashcards),
			theme.KV("Questions", st.Questions),
		))
		return nil
	},
}

func init() {
	ingestScrapeCmd.Flags().String("url", "", "Single URL to scrape")
	ingestScrapeCmd.Flags().String("sources", "", `JSON file of {"sources": [...]}`)
	ingestScrapeCmd.Flags().String("subject", "", "Subject recorded with a single --url")
	ingestPDFCmd.Flags().String("file", "", "Single PDF to collect")
	ingestPDFCmd.Flags().String("dir", "", "Directory of PDFs to collect")
	ingestPDFCmd.Flags().Bool("recursive", false, "Descend into subdirectories of --dir")
	ingestPDFCmd.Flags().String("subject", "", "Subject (default: from the file name)")
	ingestPDFCmd.Flags().String("syllabus-code", "", "Syllabus code (default: from the file name)")
	ingestPDFCmd.Flags().String("source-type", "", "Source type (default: detected from the file name)")
	ingestValidateCmd.Flags().Int("limit", 50, "Maximum rows to validate")
	ingestProcessCmd.Flags().Int("limit", 10, "Maximum rows to process")

	ingestCmd.AddCommand(ingestScrapeCmd)
	ingestCmd.AddCommand(ingestPDFCmd)
	ingestCmd.AddCommand(ingestValidateCmd)
	ingestCmd.AddCommand(ingestProcessCmd)
}
