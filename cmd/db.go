package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ianbrucey/war-room-sub000/internal/config"
	"github.com/ianbrucey/war-room-sub000/internal/model"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		Run: func(cmd *cobra.Command, args []string) {
			db, err := config.GetDB(config.LoadConfig())
			if err != nil {
				panic(err)
			}
			err = model.Migrate(db)
			if err != nil {
				panic(err)
			}
		},
	}

	return command
}
