package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"casegen/internal/models"
	"casegen/internal/poller"
	"casegen/internal/tui"

	"github.com/urfave/cli/v3"
)

// GenerateAction はユーザーストーリーを投入して結果を待つ
func GenerateAction(ctx context.Context, cmd *cli.Command) error {
	story, err := readStory(cmd.String("story"), cmd.String("file"))
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	p := appCtx.NewPoller()
	defer p.Close()

	id, err := p.Submit(ctx, story)
	if err != nil {
		if errors.Is(err, poller.ErrEmptyInput) {
			return fmt.Errorf("ユーザーストーリーが空です")
		}
		return err
	}
	fmt.Fprintf(os.Stderr, "submitted job %s\n", id)

	if cmd.Bool("detach") {
		fmt.Println(id)
		return nil
	}
	if cmd.Bool("tui") {
		return watch(ctx, p)
	}
	return waitAndPrint(ctx, p)
}

// ResumeAction は既存ジョブのポーリングを再開する（ID省略時は前回のジョブ）
func ResumeAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	id, err := appCtx.JobID(ctx, jobIDArg(cmd))
	if err != nil {
		return err
	}

	p := appCtx.NewPoller()
	defer p.Close()

	if err := p.Resume(ctx, id); err != nil {
		return err
	}
	return waitAndPrint(ctx, p)
}

// WatchAction はジョブをターミナルUIで見守る
func WatchAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	id, err := appCtx.JobID(ctx, jobIDArg(cmd))
	if err != nil {
		return err
	}

	p := appCtx.NewPoller()
	defer p.Close()

	if err := p.Resume(ctx, id); err != nil {
		return err
	}
	return watch(ctx, p)
}

// StatusAction はリモートの状態を1回だけ確認する（ポーリングしない）
func StatusAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	id, err := appCtx.JobID(ctx, jobIDArg(cmd))
	if err != nil {
		return err
	}

	resp, err := appCtx.Client.Result(ctx, id)
	if err != nil {
		return fmt.Errorf("状態の取得に失敗: %w", err)
	}

	fmt.Printf("Job ID:     %s\n", id)
	fmt.Printf("Status:     %s\n", resp.Status)

	if local, err := appCtx.Jobs.GetByID(ctx, id); err == nil && local != nil {
		fmt.Printf("Local:      %s\n", local.Status)
		if local.Input != "" {
			fmt.Printf("Story:      %s\n", truncateString(local.Input, 70))
		}
		if local.SubmittedAt != nil {
			fmt.Printf("Submitted:  %s\n", local.SubmittedAt.Local().Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func waitAndPrint(ctx context.Context, p *poller.Poller) error {
	job, err := p.Wait(ctx)
	if ctx.Err() != nil {
		p.Cancel()
		fmt.Fprintf(os.Stderr, "\nstopped; run `casegen resume %s` to continue\n", job.ID)
		return nil
	}
	fmt.Print(tui.Render(job, 0))
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusDone {
		return fmt.Errorf("job %s ended as %s", job.ID, job.Status)
	}
	return nil
}

func watch(ctx context.Context, p *poller.Poller) error {
	m, err := tui.Run(ctx, p)
	if err != nil {
		return err
	}
	job := m.Job()
	if m.Canceled() {
		fmt.Fprintf(os.Stderr, "stopped; run `casegen resume %s` to continue\n", job.ID)
		return nil
	}
	if job.Err != nil {
		return job.Err
	}
	return nil
}

func jobIDArg(cmd *cli.Command) string {
	if id := cmd.String("id"); id != "" {
		return id
	}
	return cmd.Args().First()
}

// readStory は --story、--file（"-" は標準入力）の順にストーリーを取得する
func readStory(story, file string) (string, error) {
	if story != "" {
		return story, nil
	}
	if file == "" {
		return "", fmt.Errorf("--story または --file を指定してください")
	}

	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
