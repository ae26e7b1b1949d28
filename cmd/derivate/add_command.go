package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"derivate/internal/filestore"
	"derivate/internal/fileutil"
	"derivate/internal/store"
)

// newAddCommand registers an item with media from local files: rows in
// the read model plus copies of the originals in the file store.
func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add [files...]",
		Short: "Create an item from local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			files, err := filestore.NewLocal(cfg.Paths.BasePath)
			if err != nil {
				return err
			}

			if title == "" {
				title = filepath.Base(args[0])
			}
			item, err := st.CreateItem(cmd.Context(), title)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created item %d: %s\n", item.ID, item.Title)

			for _, path := range args {
				if !fileutil.ReadableFile(path) {
					return fmt.Errorf("file %s is missing, empty or unreadable", path)
				}
				mtype, err := mimetype.DetectFile(path)
				if err != nil {
					return fmt.Errorf("detect type of %s: %w", path, err)
				}
				// mimetype appends parameters like "; charset=utf-8"; the
				// read model stores bare media types.
				mediaType, _, _ := strings.Cut(mtype.String(), ";")
				mediaType = strings.TrimSpace(mediaType)

				storageID := strings.ReplaceAll(uuid.NewString(), "-", "")
				extension := strings.TrimPrefix(filepath.Ext(path), ".")
				media := &store.Media{
					ItemID:      item.ID,
					Source:      filepath.Base(path),
					StorageID:   storageID,
					Extension:   extension,
					MediaType:   mediaType,
					Size:        fileutil.FileSize(path),
					HasOriginal: true,
				}
				if err := files.Put(path, "original/"+media.Filename()); err != nil {
					return err
				}
				added, err := st.AddMedia(cmd.Context(), media)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  media %d: %s (%s)\n", added.ID, added.Source, added.MediaType)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Item title (defaults to the first file name)")
	return cmd
}
