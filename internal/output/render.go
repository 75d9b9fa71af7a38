package output

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/GraphPe/pinata-cli/pkg/account"
	"github.com/GraphPe/pinata-cli/pkg/files"
)

// Files prints a file listing. nextPageToken is shown below the table when
// more pages are available.
func (p *Printer) Files(list []files.File, nextPageToken string) error {
	if p.format == FormatJSON {
		if list == nil {
			list = []files.File{}
		}
		return p.JSON(files.ListResult{Files: list, NextPageToken: nextPageToken})
	}
	rows := make([][]string, 0, len(list))
	for _, f := range list {
		rows = append(rows, []string{f.ID, f.Name, f.CID, f.GroupID, size(f.Size), since(f.CreatedAt)})
	}
	if err := p.Table([]string{"ID", "Name", "CID", "Group ID", "Size", "Created"}, rows); err != nil {
		return err
	}
	if nextPageToken != "" {
		return p.Warn("More results available: --page-token %s", nextPageToken)
	}
	return nil
}

// File prints the full metadata of one file.
func (p *Printer) File(f *files.File) error {
	if p.format == FormatJSON {
		return p.JSON(f)
	}
	fields := [][2]string{
		{"ID", f.ID},
		{"Name", f.Name},
		{"CID", f.CID},
		{"Size", size(f.Size)},
		{"Number of Files", strconv.Itoa(f.NumberOfFiles)},
		{"MIME Type", f.MimeType},
		{"Group ID", f.GroupID},
		{"Created At", timestamp(f.CreatedAt)},
		{"Keyvalues", keyValues(f.KeyValues)},
	}
	if f.IsDuplicate {
		fields = append(fields, [2]string{"Duplicate", "yes"})
	}
	return p.Fields(fields)
}

// Uploads prints the outcome of one or more uploads.
func (p *Printer) Uploads(results []files.UploadResult) error {
	if p.format == FormatJSON {
		out := make([]*files.File, 0, len(results))
		for _, r := range results {
			out = append(out, r.File)
		}
		return p.JSON(out)
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		dup := ""
		if r.File.IsDuplicate {
			dup = "duplicate"
		}
		rows = append(rows, []string{r.Path, r.File.ID, r.File.CID, size(r.File.Size), dup})
	}
	return p.Table([]string{"Path", "ID", "CID", "Size", "Note"}, rows)
}

// Groups prints a group listing.
func (p *Printer) Groups(groups []files.Group, nextPageToken string) error {
	if p.format == FormatJSON {
		if groups == nil {
			groups = []files.Group{}
		}
		return p.JSON(files.GroupListResult{Groups: groups, NextPageToken: nextPageToken})
	}
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g.ID, g.Name, strconv.FormatBool(g.IsPublic), since(g.CreatedAt)})
	}
	if err := p.Table([]string{"ID", "Name", "Public", "Created"}, rows); err != nil {
		return err
	}
	if nextPageToken != "" {
		return p.Warn("More results available: --page-token %s", nextPageToken)
	}
	return nil
}

// Group prints a single group.
func (p *Printer) Group(g *files.Group) error {
	if p.format == FormatJSON {
		return p.JSON(g)
	}
	return p.Fields([][2]string{
		{"ID", g.ID},
		{"Name", g.Name},
		{"Public", strconv.FormatBool(g.IsPublic)},
		{"Created At", timestamp(g.CreatedAt)},
	})
}

// Usage prints account totals.
func (p *Printer) Usage(u *account.Usage) error {
	if p.format == FormatJSON {
		return p.JSON(u)
	}
	return p.Fields([][2]string{
		{"Pin Count", humanize.Comma(u.PinCount)},
		{"Pinned Size", size(u.PinSizeTotal)},
		{"Pinned Size (with replications)", size(u.PinSizeWithReplicationsTotal)},
	})
}

func size(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}

func since(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func keyValues(kv map[string]string) string {
	if len(kv) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+kv[k])
	}
	return strings.Join(parts, ", ")
}
