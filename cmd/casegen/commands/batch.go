package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"casegen/internal/ingestion"
	"casegen/internal/models"
	"casegen/internal/worker"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

// BatchSubmitAction はファイルからユーザーストーリーを読み込みバッチとして投入する
func BatchSubmitAction(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.StringSlice("file")
	if len(paths) == 0 {
		return fmt.Errorf("--file を1つ以上指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	var files []ingestion.File
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		files = append(files, ingestion.File{Name: filepath.Base(path), Reader: f})
	}

	batch, err := ingestion.NewIngester(appCtx.Batches).Ingest(ctx, files)
	if err != nil {
		return err
	}
	fmt.Printf("Batch %s queued\n", batch.ID)
	renderBatchTable(os.Stdout, batch)

	if !cmd.Bool("process") {
		fmt.Println("\nStart the server, or rerun with --process, to generate test cases.")
		return nil
	}

	// サーバーを使わずこのプロセスでキューを処理する
	w := worker.NewWorker(appCtx.Batches, appCtx.Jobs, appCtx.Client)
	w.SetInterval(appCtx.Config.Worker.Interval)
	w.SetPollInterval(appCtx.Config.Generator.PollInterval)
	w.SetLogger(appCtx.Logger)
	w.Start(ctx)
	defer w.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "\nstopped; unfinished stories stay queued\n")
			return nil
		case <-ticker.C:
			current, err := appCtx.Batches.GetByID(ctx, batch.ID)
			if err != nil {
				return err
			}
			if current.Status != models.BatchStatusProcessing {
				fmt.Println()
				renderBatchTable(os.Stdout, current)
				return nil
			}
		}
	}
}

// BatchShowAction はバッチのファイル別集計を表示する
func BatchShowAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	id := jobIDArg(cmd)
	if id == "" {
		batches, err := appCtx.Batches.List(ctx, 10)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Println("バッチはありません")
			return nil
		}
		for i := range batches {
			fmt.Printf("Batch %s  %s  %s\n", batches[i].ID, batches[i].Status,
				batches[i].CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	}

	batch, err := appCtx.Batches.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if batch == nil {
		return fmt.Errorf("バッチが見つかりません: %s", id)
	}

	fmt.Printf("Batch %s  %s\n", batch.ID, batch.Status)
	renderBatchTable(os.Stdout, batch)
	return nil
}

// renderBatchTable はファイル別の集計をテーブル表示します
func renderBatchTable(w io.Writer, batch *models.Batch) {
	table := tablewriter.NewWriter(w)
	table.Header("File", "Stories", "Test Cases", "Failed", "Time", "Status")

	for _, f := range batch.Files {
		table.Append(
			f.FileName,
			fmt.Sprintf("%d", f.UserStoriesCount),
			fmt.Sprintf("%d", f.TestCasesGenerated),
			fmt.Sprintf("%d", f.Failed),
			f.ProcessingTime.Round(time.Second).String(),
			string(f.Status),
		)
	}

	table.Render()
}
