package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spall-labs/spall/internal/store"
)

func newAddCmd() *cobra.Command {
	var corpusName string
	var fromFile string
	var allowDupe bool

	cmd := &cobra.Command{
		Use:   "add <path> [content]",
		Short: "Add a note",
		Long: `Add a note under the given path. Content comes from the argument,
--file, or stdin. The note is chunked and embedded before the command
returns.

Examples:
  spall add ideas/cache.md "LRU beats LFU for our access pattern"
  spall add meeting-notes/2026-08-24.md --file notes.txt
  cat notes.txt | spall add meeting-notes/2026-08-24.md`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(args, fromFile)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			corpus, err := c.ensureCorpus(resolveWriteCorpus(corpusName, cfg))
			if err != nil {
				return err
			}

			var note store.Note
			if err := c.post("/corpus/note", map[string]any{
				"corpus":  corpus.ID,
				"path":    args[0],
				"content": content,
				"dupe":    allowDupe,
			}, &note); err != nil {
				return err
			}
			c.render.Successf("added note %d (%s/%s)", note.ID, corpus.Name, note.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&corpusName, "corpus", "c", "", "Target corpus (default from workspace, else \"default\")")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read content from this file")
	cmd.Flags().BoolVar(&allowDupe, "dupe", false, "Allow content identical to an existing note")
	return cmd
}

func newNoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Inspect and edit individual notes",
	}
	cmd.AddCommand(newNoteShowCmd(), newNoteUpdateCmd(), newNoteUpsertCmd())
	return cmd
}

func newNoteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			var note store.Note
			if err := c.get("/note/"+args[0], &note); err != nil {
				return err
			}
			return printJSON(note)
		},
	}
}

func newNoteUpdateCmd() *cobra.Command {
	var fromFile string
	var allowDupe bool

	cmd := &cobra.Command{
		Use:   "update <id> [content]",
		Short: "Replace a note's content",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(args, fromFile)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			var note store.Note
			if err := c.put("/note/"+args[0], map[string]any{
				"content": content,
				"dupe":    allowDupe,
			}, &note); err != nil {
				return err
			}
			c.render.Successf("updated note %d", note.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read content from this file")
	cmd.Flags().BoolVar(&allowDupe, "dupe", false, "Allow content identical to an existing note")
	return cmd
}

func newNoteUpsertCmd() *cobra.Command {
	var corpusName string
	var fromFile string
	var allowDupe bool

	cmd := &cobra.Command{
		Use:   "upsert <path> [content]",
		Short: "Add a note or replace it when the path exists",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(args, fromFile)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := connect(cfg)
			if err != nil {
				return err
			}
			corpus, err := c.ensureCorpus(resolveWriteCorpus(corpusName, cfg))
			if err != nil {
				return err
			}
			var note store.Note
			path := fmt.Sprintf("/corpus/%d/note/%s", corpus.ID, args[0])
			if err := c.put(path, map[string]any{
				"content": content,
				"dupe":    allowDupe,
			}, &note); err != nil {
				return err
			}
			c.render.Successf("upserted note %d (%s/%s)", note.ID, corpus.Name, note.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&corpusName, "corpus", "c", "", "Target corpus (default from workspace, else \"default\")")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read content from this file")
	cmd.Flags().BoolVar(&allowDupe, "dupe", false, "Allow content identical to an existing note")
	return cmd
}

// readContent picks note content from the argument, a file, or stdin, in
// that order of preference.
func readContent(args []string, fromFile string) (string, error) {
	if len(args) == 2 {
		return args[1], nil
	}
	if fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", fromFile, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}
