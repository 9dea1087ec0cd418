package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/irobothq/irobot/pkg/chat"
	"github.com/irobothq/irobot/pkg/cliui"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

// streamPollInterval is how often the plain view drains new snapshot
// content while an answer is streaming.
const streamPollInterval = 60 * time.Millisecond

func (c *chatCommander) runPlain(ctx context.Context, sess *session) error {
	fmt.Println()
	if sess.convID != "" {
		fmt.Printf("  %s Resuming %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(cliui.Truncate(sess.title, 48)),
		)
	} else {
		fmt.Printf("  %s New conversation\n", cliui.SuccessMark)
	}
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("/new starts over, /quit exits"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			if err := sess.reset(); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			fmt.Printf("  %s Started a new conversation\n\n", cliui.SuccessMark)
			continue
		}

		if err := c.streamTurn(ctx, sess, line); err != nil {
			if isCanceled(err) || ctx.Err() != nil {
				fmt.Println()
				return nil
			}
			return err
		}
	}
}

// streamTurn sends one message and prints the answer as it arrives.
func (c *chatCommander) streamTurn(ctx context.Context, sess *session, message string) error {
	type outcome struct {
		res *chat.Result
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := sess.consumer.Send(ctx, sess.convID, message)
		done <- outcome{res: res, err: err}
	}()

	fmt.Print(assistantPrompt)

	printed := 0
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := sess.consumer.Snapshot()
			if len(snap.Content) > printed {
				fmt.Print(snap.Content[printed:])
				printed = len(snap.Content)
			}
		case out := <-done:
			var validation *chat.ValidationError
			if errors.As(out.err, &validation) {
				fmt.Printf("\r%s\n\n", cliui.WarnStyle.Render("! "+validation.Error()))
				return nil
			}
			if out.err != nil {
				// A partial answer may already be on screen; the
				// snapshot keeps it, so only the failure is reported.
				fmt.Printf("\n\n  %s %v\n\n", cliui.FailMark, out.err)
				if isCanceled(out.err) {
					return out.err
				}
				return nil
			}

			if len(out.res.Content) > printed {
				fmt.Print(out.res.Content[printed:])
			}
			fmt.Println()

			c.printCompletion(out.res)
			sess.recordTurn(ctx, message, out.res)
			return nil
		}
	}
}

func (c *chatCommander) printCompletion(res *chat.Result) {
	if c.renderMD {
		if rendered, err := cliui.RenderMarkdown(res.Content); err == nil {
			fmt.Print(rendered)
		}
	}

	if len(res.Sources) > 0 {
		titles := make([]string, 0, len(res.Sources))
		for _, src := range res.Sources {
			titles = append(titles, src.Title)
		}
		fmt.Printf("  %s\n", cliui.DimStyle.Render("sources: "+strings.Join(titles, ", ")))
	}
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("("+cliui.FormatDuration(res.Duration)+")"))
}
