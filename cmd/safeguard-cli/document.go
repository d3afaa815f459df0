package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/spf13/cobra"
)

var (
	docID    string
	docTitle string
	docFile  string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a document from a PDF, DOCX, Markdown or text file",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := indexFromFile(cmd)
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild a document's chunks from a file, or from the document store when --file is omitted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if docFile == "" {
			resp, err := core.Documents.ReindexFromStore(cmd.Context(), docID)
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			return printJSON(cmd, resp)
		}

		resp, err := indexFromFile(cmd)
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a document and all of its chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := core.Documents.Remove(cmd.Context(), docID); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		return printJSON(cmd, entity.DeleteDocumentResponse{Status: "deleted"})
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Keep a document registered but stop retrieving it",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := core.Documents.Deactivate(cmd.Context(), docID)
		if err != nil {
			return fmt.Errorf("deactivate failed: %w", err)
		}
		return printJSON(cmd, doc)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := core.Documents.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}
		return printJSON(cmd, entity.ListDocumentsResponse{Documents: docs})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := core.Documents.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		return printJSON(cmd, status)
	},
}

func init() {
	indexCmd.Flags().StringVar(&docID, "id", "", "document id")
	indexCmd.Flags().StringVar(&docTitle, "title", "", "document title, defaults to the file name")
	indexCmd.Flags().StringVar(&docFile, "file", "", "path to the document file")
	_ = indexCmd.MarkFlagRequired("id")
	_ = indexCmd.MarkFlagRequired("file")

	reindexCmd.Flags().StringVar(&docID, "id", "", "document id")
	reindexCmd.Flags().StringVar(&docTitle, "title", "", "new title, keeps the registered one when empty")
	reindexCmd.Flags().StringVar(&docFile, "file", "", "path to the new document file")
	_ = reindexCmd.MarkFlagRequired("id")

	for _, c := range []*cobra.Command{removeCmd, deactivateCmd} {
		c.Flags().StringVar(&docID, "id", "", "document id")
		_ = c.MarkFlagRequired("id")
	}

	rootCmd.AddCommand(indexCmd, reindexCmd, removeCmd, deactivateCmd, listCmd, statusCmd)
}

func indexFromFile(cmd *cobra.Command) (*entity.IndexDocumentResponse, error) {
	content, err := os.ReadFile(docFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", docFile, err)
	}

	title := docTitle
	if title == "" {
		if existing, err := core.Documents.Get(cmd.Context(), docID); err == nil {
			title = existing.Title
		} else {
			title = filepath.Base(docFile)
		}
	}

	resp, err := core.Documents.IndexFile(cmd.Context(), docID, title, filepath.Base(docFile), content)
	if err != nil {
		return nil, fmt.Errorf("index failed: %w", err)
	}
	return resp, nil
}
