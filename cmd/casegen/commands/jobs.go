package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"casegen/internal/export"
	"casegen/internal/models"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

// JobsListAction はジョブ履歴を表示する
func JobsListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	limit := int(cmd.Int("limit"))
	var jobs []models.Job
	if status := cmd.String("status"); status != "" {
		jobs, err = appCtx.Jobs.ListByStatus(ctx, models.JobStatus(status), limit)
	} else {
		jobs, err = appCtx.Jobs.ListRecent(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("ジョブの取得に失敗: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("ジョブはありません")
		return nil
	}

	renderJobsTable(os.Stdout, jobs)

	if cmd.Bool("stats") {
		stats, err := appCtx.Jobs.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d  Test cases: %d  Success rate: %.1f%%\n",
			stats.TotalJobs, stats.TestCasesGenerated, stats.SuccessRate*100)
	}
	return nil
}

// ExportAction は生成結果をファイルまたは標準出力に書き出す
func ExportAction(ctx context.Context, cmd *cli.Command) error {
	format, err := export.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	id, err := appCtx.JobID(ctx, jobIDArg(cmd))
	if err != nil {
		return err
	}

	job, err := appCtx.Jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("ジョブが見つかりません: %s", id)
	}
	if job.Status != models.JobStatusDone {
		return fmt.Errorf("ジョブ %s は完了していません (%s)", id, job.Status)
	}

	var w io.Writer = os.Stdout
	out := cmd.String("out")
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := export.Write(w, *job, format); err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintf(os.Stderr, "wrote %s\n", out)
	}
	return nil
}

// renderJobsTable はテーブル形式でジョブ一覧を表示します
func renderJobsTable(w io.Writer, jobs []models.Job) {
	table := tablewriter.NewWriter(w)
	table.Header("Job ID", "Status", "Cases", "User Story", "Submitted")

	for _, job := range jobs {
		cases := 0
		if job.Result != nil {
			cases = len(job.Result.GeneratedTestCases)
		}
		submitted := "-"
		if job.SubmittedAt != nil {
			submitted = job.SubmittedAt.Local().Format("2006-01-02 15:04")
		}
		table.Append(
			job.ID,
			string(job.Status),
			fmt.Sprintf("%d", cases),
			truncateString(job.Input, 50),
			submitted,
		)
	}

	table.Render()
}
