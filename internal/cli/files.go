package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GraphPe/pinata-cli/internal/output"
	"github.com/GraphPe/pinata-cli/pkg/files"
)

// errAborted is returned when the user declines a confirmation.
var errAborted = errors.New("aborted")

func (a *App) newUploadCommand() *cobra.Command {
	var (
		name        string
		group       string
		keyvalues   []string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name can only be used with a single path")
			}
			kv, err := parseKeyValues(keyvalues)
			if err != nil {
				return err
			}
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			opts := &files.UploadOptions{Name: name, GroupID: group, KeyValues: kv}
			a.logger.Info("uploading", zap.Strings("paths", args), zap.Int("concurrency", concurrency))

			var results []files.UploadResult
			if len(args) == 1 {
				f, err := clients.Files.UploadFile(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				results = []files.UploadResult{{Path: args[0], File: f}}
			} else {
				results, err = clients.Files.UploadMany(cmd.Context(), args, opts, concurrency)
				if err != nil {
					return err
				}
			}
			if err := a.printer.Uploads(results); err != nil {
				return err
			}
			return a.printer.Success("Uploaded %d file(s), use `pinata list` to see them", len(results))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name stored on Pinata (default: file base name)")
	cmd.Flags().StringVar(&group, "group", "", "group id to add the file to")
	cmd.Flags().StringArrayVar(&keyvalues, "keyvalue", nil, "metadata key=value (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", files.DefaultUploadConcurrency, "parallel uploads when several paths are given")
	return cmd
}

func (a *App) newListCommand() *cobra.Command {
	var (
		opts      files.ListOptions
		keyvalues []string
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files in your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kv, err := parseKeyValues(keyvalues)
			if err != nil {
				return err
			}
			opts.KeyValues = kv
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			if all {
				list, err := clients.Files.ListAll(cmd.Context(), &opts, 0)
				if err != nil {
					return err
				}
				return a.printer.Files(list, "")
			}
			res, err := clients.Files.List(cmd.Context(), &opts)
			if err != nil {
				return err
			}
			return a.printer.Files(res.Files, res.NextPageToken)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Name, "name", "", "filter by name")
	f.StringVar(&opts.CID, "cid", "", "filter by CID")
	f.StringVar(&opts.MimeType, "mime", "", "filter by MIME type")
	f.StringVar(&opts.GroupID, "group", "", "filter by group id")
	f.BoolVar(&opts.CIDPending, "pending", false, "only files whose CID is still being computed")
	f.StringVar(&opts.Order, "order", "", "sort by creation date: ASC or DESC")
	f.IntVar(&opts.Limit, "limit", 0, "page size")
	f.StringVar(&opts.PageToken, "page-token", "", "continue from a previous page")
	f.StringArrayVar(&keyvalues, "keyvalue", nil, "filter by metadata key=value (repeatable)")
	f.BoolVar(&all, "all", false, "follow page tokens and list every file")
	return cmd
}

func (a *App) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show the metadata of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			f, err := clients.Files.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printer.File(f)
		},
	}
}

func (a *App) newUpdateCommand() *cobra.Command {
	var (
		name      string
		keyvalues []string
	)
	cmd := &cobra.Command{
		Use:   "update <id> | update id=<id>,name=<name>",
		Short: "Change the name or metadata of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			kv, err := parseKeyValues(keyvalues)
			if err != nil {
				return err
			}
			opts := &files.UpdateOptions{KeyValues: kv}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if strings.Contains(id, "=") {
				if id, err = parseLegacyUpdate(args[0], opts); err != nil {
					return err
				}
			}
			if opts.Name == nil && len(opts.KeyValues) == 0 {
				return fmt.Errorf("nothing to update: pass --name or --keyvalue")
			}
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			f, err := clients.Files.Update(cmd.Context(), id, opts)
			if err != nil {
				return err
			}
			if a.printer.Format() == output.FormatJSON {
				return a.printer.File(f)
			}
			return a.printer.Success("Updated %s, run `pinata get %s` to check the new values", f.ID, f.ID)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringArrayVar(&keyvalues, "keyvalue", nil, "metadata key=value to set (repeatable)")
	return cmd
}

func (a *App) newDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("%w: file id is required", files.ErrInvalidArgument)
			}
			if !yes {
				if !a.confirm(fmt.Sprintf("Are you sure you want to delete the file with ID [%s]? (yes/no): ", id)) {
					return errAborted
				}
			}
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			if err := clients.Files.Delete(cmd.Context(), id); err != nil {
				return err
			}
			if a.printer.Format() == output.FormatJSON {
				return a.printer.JSON(map[string]any{"id": id, "deleted": true})
			}
			return a.printer.Success("Deleted %s", id)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks on stderr and accepts y or yes. No input counts as no.
func (a *App) confirm(prompt string) bool {
	fmt.Fprint(a.Err, prompt)
	answer, err := readLine(a.In)
	if err != nil {
		fmt.Fprintln(a.Err)
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (a *App) newDownloadCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <cid>",
		Short: "Fetch content by CID through the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err := clients.Gateway.Fetch(cmd.Context(), args[0], a.Out)
				return err
			}
			n, err := clients.Gateway.FetchToFile(cmd.Context(), args[0], out)
			if err != nil {
				return err
			}
			if a.printer.Format() == output.FormatJSON {
				return a.printer.JSON(map[string]any{"cid": args[0], "path": out, "bytes": n})
			}
			return a.printer.Success("Saved %s to %s", humanize.Bytes(uint64(n)), out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

func (a *App) newUsageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show pinned file count and storage used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			u, err := clients.Account.Usage(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Usage(u)
		},
	}
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{"version": a.version(), "commit": a.Build.Commit, "date": a.Build.Date}
			if a.printer.Format() == output.FormatJSON {
				return a.printer.JSON(info)
			}
			line := "pinata " + info["version"]
			if a.Build.Commit != "" {
				line += " (" + a.Build.Commit
				if a.Build.Date != "" {
					line += ", " + a.Build.Date
				}
				line += ")"
			}
			_, err := fmt.Fprintln(a.Out, line)
			return err
		},
	}
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	kv := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid keyvalue %q: want key=value", p)
		}
		kv[k] = strings.TrimSpace(v)
	}
	return kv, nil
}

// parseLegacyUpdate reads "id=<id>,name=<name>[,key=value...]". Keys other
// than id and name become keyvalues.
func parseLegacyUpdate(raw string, opts *files.UpdateOptions) (string, error) {
	id := ""
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" {
			return "", fmt.Errorf("invalid update segment %q: want key=value", part)
		}
		switch k {
		case "id":
			id = v
		case "name":
			name := v
			opts.Name = &name
		default:
			if opts.KeyValues == nil {
				opts.KeyValues = make(map[string]string)
			}
			opts.KeyValues[k] = v
		}
	}
	if id == "" {
		return "", fmt.Errorf("%w: id is missing from %q", files.ErrInvalidArgument, raw)
	}
	return id, nil
}
