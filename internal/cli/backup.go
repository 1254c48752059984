package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robdennis/trappist/internal/storage"
)

func newBackupCmd(app *App) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore the store",
	}
	backupCmd.AddCommand(
		newBackupCreateCmd(app),
		newBackupListCmd(app),
		newBackupRestoreCmd(app),
	)
	return backupCmd
}

func newBackupCreateCmd(app *App) *cobra.Command {
	var (
		dir      string
		password string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup of the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := storage.NewBackupManager(app.dbPath)
			config := storage.DefaultBackupConfig()
			config.BackupDir = dir
			if config.BackupDir == "" {
				backupDir, err := app.cfg.BackupDir()
				if err != nil {
					return err
				}
				config.BackupDir = backupDir
			}
			config.VerifyBackup = app.cfg.Backup.Verify
			config.Password = password

			path, err := manager.Backup(config)
			if err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Backup directory (defaults to the configured one)")
	cmd.Flags().StringVar(&password, "password", "", "Encrypt the backup with this password")
	return cmd
}

func newBackupListCmd(app *App) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List existing backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := storage.NewBackupManager(app.dbPath)
			backupDir := dir
			if backupDir == "" {
				var err error
				if backupDir, err = app.cfg.BackupDir(); err != nil {
					return err
				}
			}
			backups, err := manager.ListBackups(backupDir)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Println("No backups.")
				return nil
			}
			for _, info := range backups {
				enc := ""
				if info.Encrypted {
					enc = "  encrypted"
				}
				fmt.Printf("%s  %8d bytes  %s%s\n",
					info.CreatedAt.Local().Format("2006-01-02 15:04:05"), info.Size, info.Path, enc)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Backup directory (defaults to the configured one)")
	return cmd
}

func newBackupRestoreCmd(app *App) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "restore <backup file>",
		Short: "Replace the store with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.confirmer().Confirm(fmt.Sprintf("Replace %s with %s?", app.dbPath, args[0])) {
				return fmt.Errorf("restore aborted")
			}
			// Close our handle so the restored file is not clobbered by
			// a checkpoint from the old connection.
			if err := app.close(); err != nil {
				return err
			}
			manager := storage.NewBackupManager(app.dbPath)
			if err := manager.Restore(args[0], password); err != nil {
				return err
			}
			fmt.Println("Store restored.")
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password for an encrypted backup")
	return cmd
}
