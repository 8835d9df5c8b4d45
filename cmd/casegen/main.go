package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"casegen/cmd/casegen/commands"
	"casegen/internal/version"

	"github.com/urfave/cli/v3"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func idFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:  "id",
		Usage: usage,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:    "casegen",
		Usage:   "ユーザーストーリーからテストケースを生成する",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "ユーザーストーリーを投入し、完了まで待つ",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "story",
						Usage: "ユーザーストーリー本文",
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "ユーザーストーリーを読むファイル（- で標準入力）",
					},
					&cli.BoolFlag{
						Name:  "detach",
						Usage: "投入だけしてジョブIDを表示する",
					},
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "ターミナルUIで進捗を表示する",
					},
				},
				Action: commands.GenerateAction,
			},
			{
				Name:      "resume",
				Usage:     "ジョブのポーリングを再開する（省略時は前回のジョブ）",
				ArgsUsage: "[job-id]",
				Flags:     []cli.Flag{envFlag(), idFlag("ジョブID")},
				Action:    commands.ResumeAction,
			},
			{
				Name:      "status",
				Usage:     "ジョブの状態を1回だけ確認する",
				ArgsUsage: "[job-id]",
				Flags:     []cli.Flag{envFlag(), idFlag("ジョブID")},
				Action:    commands.StatusAction,
			},
			{
				Name:      "watch",
				Usage:     "ジョブをターミナルUIで見守る",
				ArgsUsage: "[job-id]",
				Flags:     []cli.Flag{envFlag(), idFlag("ジョブID")},
				Action:    commands.WatchAction,
			},
			{
				Name:      "export",
				Usage:     "生成結果を書き出す",
				ArgsUsage: "[job-id]",
				Flags: []cli.Flag{
					envFlag(),
					idFlag("ジョブID"),
					&cli.StringFlag{
						Name:  "format",
						Usage: "json, yaml, csv, markdown",
						Value: "json",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "出力ファイル（省略時は標準出力）",
					},
				},
				Action: commands.ExportAction,
			},
			{
				Name:  "batch",
				Usage: "一括処理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "submit",
						Usage: ".txt / .csv / .xlsx からストーリーを投入する",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringSliceFlag{
								Name:     "file",
								Usage:    "入力ファイル（複数指定可）",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "process",
								Usage: "このプロセスでキューを処理し完了まで待つ",
							},
						},
						Action: commands.BatchSubmitAction,
					},
					{
						Name:      "show",
						Usage:     "バッチのファイル別集計を表示（省略時は一覧）",
						ArgsUsage: "[batch-id]",
						Flags:     []cli.Flag{envFlag(), idFlag("バッチID")},
						Action:    commands.BatchShowAction,
					},
				},
			},
			{
				Name:  "jobs",
				Usage: "ジョブ履歴コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "ジョブ一覧を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "status",
								Usage: "processing, done, failed（絞り込み）",
							},
							&cli.IntFlag{
								Name:  "limit",
								Usage: "表示件数",
								Value: 20,
							},
							&cli.BoolFlag{
								Name:  "stats",
								Usage: "集計も表示する",
							},
						},
						Action: commands.JobsListAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
