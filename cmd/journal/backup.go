package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"substance-journal/internal/backup"
)

func backupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload a journal export to S3 and rotate old backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := openBackups(cmd)
			if err != nil {
				return err
			}
			key, err := backups.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := openBackups(cmd)
			if err != nil {
				return err
			}
			objects, err := backups.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, objects)
		},
	}

	var yes bool
	restore := &cobra.Command{
		Use:   "restore KEY",
		Short: "Replace the journal with a stored backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("restore deletes the current journal; pass --yes to confirm")
			}
			backups, err := openBackups(cmd)
			if err != nil {
				return err
			}
			rc, err := backups.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer rc.Close()
			sum, err := fromContext(cmd.Context()).transfer.Import(cmd.Context(), rc)
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd, sum)
		},
	}
	restore.Flags().BoolVarP(&yes, "yes", "y", false, "confirm replacing the current journal")

	cmd.AddCommand(list, restore)
	return cmd
}

func openBackups(cmd *cobra.Command) (*backup.Service, error) {
	a := fromContext(cmd.Context())
	if !a.cfg.BackupEnabled() {
		return nil, errors.New("backups need JOURNAL_S3_BUCKET, JOURNAL_S3_ACCESS_KEY and JOURNAL_S3_SECRET_KEY")
	}
	client, err := backup.NewS3Client(cmd.Context(), a.cfg)
	if err != nil {
		return nil, err
	}
	return backup.New(client, a.cfg.S3Bucket, a.cfg.BackupKeep, a.transfer, a.log), nil
}
