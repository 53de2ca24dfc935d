package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"note-tracker/app/config"
	"note-tracker/app/database"
	"note-tracker/app/logger"
	"note-tracker/app/store"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "查看和维护本地保存的任务",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出本地保存的任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := logger.New(cfg.Log)
		defer log.Close()

		st, db, err := openStore(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer database.Close(db)

		currentID := st.CurrentID()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tSTATUS\tVERSIONS\tCREATED\tTITLE")
		for _, t := range st.Tasks() {
			marker := ""
			if t.ID == currentID {
				marker = "*"
			}
			versions := len(t.Markdown.Versions())
			if versions == 0 && !t.Markdown.IsEmpty() {
				versions = 1
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				marker, t.ID, t.Status, versions, t.CreatedAt.Format("2006-01-02 15:04:05"), t.AudioMeta.Title)
		}
		return w.Flush()
	},
}

var tasksNormalizeCmd = &cobra.Command{
	Use:   "normalize-titles",
	Short: "规范化任务标题",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := logger.New(cfg.Log)
		defer log.Close()

		st, db, err := openStore(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer database.Close(db)

		changed := st.NormalizeTitles()
		fmt.Printf("已规范化 %d 个任务标题\n", changed)
		return nil
	},
}

// openStore 打开数据库并恢复任务存储
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store.Store, *gorm.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(cfg.Storage.DBPath, log)
	if err != nil {
		return nil, nil, err
	}

	persistence := database.NewStatePersistence(db, cfg.Storage.StateKey)
	st := store.New(persistence, log.Named("store"))
	if err := st.Load(ctx); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return st, db, nil
}

func init() {
	tasksCmd.AddCommand(tasksListCmd, tasksNormalizeCmd)
	rootCmd.AddCommand(tasksCmd)
}
