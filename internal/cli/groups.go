package cli

import (
	"github.com/spf13/cobra"

	"github.com/GraphPe/pinata-cli/internal/output"
	"github.com/GraphPe/pinata-cli/pkg/files"
)

func (a *App) newGroupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Manage file groups",
	}
	cmd.AddCommand(
		a.newGroupsListCommand(),
		a.newGroupsCreateCommand(),
		a.newGroupsGetCommand(),
		a.newGroupsDeleteCommand(),
		a.newGroupMemberCommand("add", "Add a file to a group", true),
		a.newGroupMemberCommand("remove", "Remove a file from a group", false),
	)
	return cmd
}

func (a *App) newGroupsListCommand() *cobra.Command {
	var (
		opts   files.GroupListOptions
		public bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("public") {
				opts.IsPublic = &public
			}
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			res, err := clients.Files.ListGroups(cmd.Context(), &opts)
			if err != nil {
				return err
			}
			return a.printer.Groups(res.Groups, res.NextPageToken)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "filter by name")
	cmd.Flags().BoolVar(&public, "public", false, "only public (true) or private (false) groups")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&opts.PageToken, "page-token", "", "continue from a previous page")
	return cmd
}

func (a *App) newGroupsCreateCommand() *cobra.Command {
	var public bool
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			g, err := clients.Files.CreateGroup(cmd.Context(), args[0], public)
			if err != nil {
				return err
			}
			return a.printer.Group(g)
		},
	}
	cmd.Flags().BoolVar(&public, "public", false, "make the group public")
	return cmd
}

func (a *App) newGroupsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <group-id>",
		Short: "Show a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			g, err := clients.Files.GetGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printer.Group(g)
		},
	}
}

func (a *App) newGroupsDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <group-id>",
		Short: "Delete a group; its files are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !a.confirm("Are you sure you want to delete the group with ID ["+args[0]+"]? (yes/no): ") {
				return errAborted
			}
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			if err := clients.Files.DeleteGroup(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.printer.Format() == output.FormatJSON {
				return a.printer.JSON(map[string]any{"id": args[0], "deleted": true})
			}
			return a.printer.Success("Deleted group %s", args[0])
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *App) newGroupMemberCommand(use, short string, add bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <group-id> <file-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := a.pinataClients()
			if err != nil {
				return err
			}
			groupID, fileID := args[0], args[1]
			if add {
				err = clients.Files.AddToGroup(cmd.Context(), groupID, fileID)
			} else {
				err = clients.Files.RemoveFromGroup(cmd.Context(), groupID, fileID)
			}
			if err != nil {
				return err
			}
			if a.printer.Format() == output.FormatJSON {
				return a.printer.JSON(map[string]string{"group_id": groupID, "file_id": fileID, "action": use})
			}
			if add {
				return a.printer.Success("Added %s to group %s", fileID, groupID)
			}
			return a.printer.Success("Removed %s from group %s", fileID, groupID)
		},
	}
}
